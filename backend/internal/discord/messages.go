package discord

// Replies sent to users. They are in Japanese to match the voices.
const (
	msgSpeakerUnset    = "SpeakerIDが登録されていません。\n`/texvoice [数字]`で指定できます。\n`/speakerlist` でIDの一覧を表示できます。"
	msgSpeakerCurrent  = "あなたのSpeakerIDは`%d:%s`です。\n`/texvoice [数字]`で変更できます。\n`/speakerlist` でIDの一覧を表示できます。"
	msgSpeakerUnknown  = "`%s`はリストに含まれません。\n`/speakerlist` でIDの一覧を表示できます。"
	msgSpeakerAssigned = "OK\n%sさんの声は`%d: %s`に指定されました。"

	msgUserNotInVoice   = "あなたはVoiceチャンネルに接続していません。"
	msgAlreadyConnected = "私は既にVoiceチャンネルに接続しています。"
	msgConnected        = "接続しました。"
	msgConnectFailed    = "接続に失敗しました。"
	msgNotConnected     = "私はVoiceチャンネルに接続していません。"
	msgLeaveNeedsVoice  = "あなたはVoiceチャンネルに接続していません。\nボイスチャンネルにいる人が切断できます。"
	msgDisconnected     = "切断しました。"

	msgChannelNotAllowed = "このチャンネルでは使用できません。"
	msgDictNotFound      = "`%s`は登録されていません。"
	msgDictRemoved       = "`%s`を削除しました。"
	msgDictRegistered    = "`%s`は`%s`と発音されます。"
	msgDictSyntaxError   = "`%s` に構文エラーがあります。"
	msgDictBadReading    = "`%s`<<<読み方には平仮名か片仮名のみが指定できます。"
	msgDictEmpty         = "辞書に何も登録されていません。"

	msgGuildOnly = "このコマンドはサーバー内でのみ使用できます。"
)
