package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
)

// SpeakerID is a voice style id. It is stored as a string ("3") but
// accepted as a number too.
type SpeakerID int

func (id *SpeakerID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		n, err := strconv.Atoi(str)
		if err != nil {
			return fmt.Errorf("speaker id %q is not an integer", str)
		}
		*id = SpeakerID(n)
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("speaker id must be a number or string: %w", err)
	}
	*id = SpeakerID(n)
	return nil
}

func (id SpeakerID) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(id)))
}

// SpeakerAssignment is the voice a user has chosen within a guild
type SpeakerAssignment struct {
	SpeakerID   SpeakerID `json:"voiceid"`
	DisplayName string    `json:"name"`
}

// Assignments holds speaker assignments keyed by guild then user
type Assignments struct {
	mu      sync.RWMutex
	byGuild map[string]map[string]SpeakerAssignment
}

// NewAssignments creates an empty set of assignments
func NewAssignments() *Assignments {
	return &Assignments{byGuild: make(map[string]map[string]SpeakerAssignment)}
}

// Get returns a user's assignment in a guild
func (a *Assignments) Get(guildID, userID string) (SpeakerAssignment, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sa, ok := a.byGuild[guildID][userID]
	return sa, ok
}

// SpeakerFor returns the speaker id assigned to a user in a guild
func (a *Assignments) SpeakerFor(guildID, userID string) (int, bool) {
	sa, ok := a.Get(guildID, userID)
	return int(sa.SpeakerID), ok
}

// Set records a user's assignment
func (a *Assignments) Set(guildID, userID string, sa SpeakerAssignment) {
	a.mu.Lock()
	defer a.mu.Unlock()

	users, ok := a.byGuild[guildID]
	if !ok {
		users = make(map[string]SpeakerAssignment)
		a.byGuild[guildID] = users
	}
	users[userID] = sa
}

// Len returns the number of assignments across all guilds
func (a *Assignments) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := 0
	for _, users := range a.byGuild {
		n += len(users)
	}
	return n
}

func (a *Assignments) MarshalJSON() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return json.Marshal(a.byGuild)
}

func (a *Assignments) UnmarshalJSON(data []byte) error {
	byGuild := make(map[string]map[string]SpeakerAssignment)
	if err := json.Unmarshal(data, &byGuild); err != nil {
		return err
	}
	a.mu.Lock()
	a.byGuild = byGuild
	a.mu.Unlock()
	return nil
}
