package store

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore keeps the model and chat records as JSON files under a state
// directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the state directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "chats"), 0o700); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) modelPath() string {
	return filepath.Join(s.dir, "model.json")
}

// chat file names are the hex of the key so server addresses with slashes
// and colons stay filesystem-safe.
func (s *FileStore) chatPath(key ChatKey) string {
	name := hex.EncodeToString([]byte(key.ServerAddress + "\x00" + key.Chatid))
	return filepath.Join(s.dir, "chats", name+".json")
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadModel implements Store.
func (s *FileStore) LoadModel() (Model, error) {
	var m Model
	if err := readJSON(s.modelPath(), &m); err != nil {
		return Model{}, err
	}
	return m, nil
}

// SaveModel implements Store.
func (s *FileStore) SaveModel(m Model) error {
	return writeJSON(s.modelPath(), m)
}

// LoadChat implements Store.
func (s *FileStore) LoadChat(key ChatKey) (ChatRecord, error) {
	var record ChatRecord
	if err := readJSON(s.chatPath(key), &record); err != nil {
		return ChatRecord{}, err
	}
	return record, nil
}

// SaveChat implements Store.
func (s *FileStore) SaveChat(key ChatKey, record ChatRecord) error {
	return writeJSON(s.chatPath(key), record)
}

// DeleteChat implements Store.
func (s *FileStore) DeleteChat(key ChatKey) error {
	err := os.Remove(s.chatPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
