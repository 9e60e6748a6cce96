package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// historyEntry is one line of the local confirmation journal. The journal
// only records bookings this client made; the server stays authoritative.
type historyEntry struct {
	ID      string    `json:"id"`
	At      time.Time `json:"at"`
	Type    string    `json:"type"`
	Profile string    `json:"profile,omitempty"`
	Code    string    `json:"confirmation_code,omitempty"`
	Date    string    `json:"date,omitempty"`
	Slot    string    `json:"slot,omitempty"`
	UserID  string    `json:"user_id,omitempty"`
	Message string    `json:"message,omitempty"`
}

func historyFilePath() string {
	dir := defaultConfigDir()
	if strings.TrimSpace(dir) == "" {
		return ""
	}
	return filepath.Join(dir, "history.jsonl")
}

func appendHistory(entry historyEntry) error {
	path := historyFilePath()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(b, '\n'))
	return err
}

func readHistory() ([]historyEntry, error) {
	path := historyFilePath()
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	out := make([]historyEntry, 0, len(lines))
	for _, line := range lines {
		s := strings.TrimSpace(line)
		if s == "" {
			continue
		}
		var e historyEntry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// readHistoryPage reads the newest entries from the end of the journal
// without loading the whole file. Entries come back oldest first.
func readHistoryPage(limit, offset int) ([]historyEntry, bool, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		return nil, false, fmt.Errorf("offset must be >= 0")
	}
	path := historyFilePath()
	if path == "" {
		return nil, false, nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	if info.Size() == 0 {
		return nil, false, nil
	}

	need := limit + offset + 1
	desc := make([]historyEntry, 0, need)
	pos := info.Size()
	remainder := ""
	buf := make([]byte, 8192)
	for pos > 0 && len(desc) < need {
		n := int64(len(buf))
		if n > pos {
			n = pos
		}
		pos -= n
		if _, err := f.ReadAt(buf[:n], pos); err != nil && err != io.EOF {
			return nil, false, err
		}
		chunk := string(buf[:n]) + remainder
		parts := strings.Split(chunk, "\n")
		remainder = parts[0]
		for i := len(parts) - 1; i >= 1 && len(desc) < need; i-- {
			s := strings.TrimSpace(parts[i])
			if s == "" {
				continue
			}
			var e historyEntry
			if err := json.Unmarshal([]byte(s), &e); err != nil {
				continue
			}
			desc = append(desc, e)
		}
	}
	if pos == 0 {
		s := strings.TrimSpace(remainder)
		if s != "" && len(desc) < need {
			var e historyEntry
			if err := json.Unmarshal([]byte(s), &e); err == nil {
				desc = append(desc, e)
			}
		}
	}

	if len(desc) <= offset {
		return nil, false, nil
	}
	end := offset + limit
	if end > len(desc) {
		end = len(desc)
	}
	slice := desc[offset:end]
	out := make([]historyEntry, 0, len(slice))
	for i := len(slice) - 1; i >= 0; i-- {
		out = append(out, slice[i])
	}
	hasMore := len(desc) > end
	return out, hasMore, nil
}

func clearHistory() (int, error) {
	entries, err := readHistory()
	if err != nil {
		return 0, err
	}
	path := historyFilePath()
	if path == "" {
		return 0, nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	return len(entries), nil
}
