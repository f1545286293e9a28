package session

import "sync"

// Store keeps one session per chat.
type Store struct {
	m sync.Map // chatID -> *Session
}

func NewStore() *Store { return &Store{} }

func (st *Store) Get(chatID int64) *Session {
	if v, ok := st.m.Load(chatID); ok {
		return v.(*Session)
	}
	v, _ := st.m.LoadOrStore(chatID, New())
	return v.(*Session)
}
