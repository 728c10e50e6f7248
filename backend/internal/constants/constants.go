package constants

// Speech text constants
const (
	// DefaultMaxSpeechRunes is the hard cap on speakable text length
	DefaultMaxSpeechRunes = 50

	// URLPlaceholder replaces every URL in a message
	URLPlaceholder = " URL "

	// CodePlaceholder replaces every fenced code block in a message
	CodePlaceholder = " コード "

	// LineSeparator replaces newlines so the engine does not stall on line breaks
	LineSeparator = "、"
)

// Discord constants
const (
	// DiscordMaxMessageLength is the maximum character limit for Discord messages
	DiscordMaxMessageLength = 2000
)

// Slash command names
const (
	CommandVoice       = "texvoice"
	CommandJoin        = "join"
	CommandLeave       = "left"
	CommandSpeakerList = "speakerlist"
	CommandDictionary  = "dictionary"
	CommandDictList    = "dictlist"
)

// Playback constants
const (
	// DefaultMaxPendingUtterances bounds the per-session synthesis backlog
	DefaultMaxPendingUtterances = 64

	// OpusFrameDuration is the frame length, in milliseconds, requested from ffmpeg
	OpusFrameDuration = 20

	// OpusSampleRate and OpusChannels match Discord's voice format
	OpusSampleRate = 48000
	OpusChannels   = 2
)
