// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "time"

// Reduce is the single transition function. It is pure and total: the input
// state is never mutated, every action yields a state, and actions naming
// unknown sessions or messages fall through unchanged.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case CreateSession:
		sessions := make([]Session, 0, len(s.Sessions)+1)
		sessions = append(sessions, act.Session)
		sessions = append(sessions, s.Sessions...)
		s.Sessions = sessions
		s.CurrentSessionID = act.Session.ID
		return s

	case SetCurrentSession:
		if _, ok := s.Session(act.ID); !ok {
			return s
		}
		s.CurrentSessionID = act.ID
		return s

	case AddMessage:
		return mapSession(s, act.SessionID, func(sess Session) Session {
			msgs := make([]Message, 0, len(sess.Messages)+1)
			msgs = append(msgs, sess.Messages...)
			msgs = append(msgs, act.Message)
			sess.Messages = msgs
			sess.UpdatedAt = time.Now().UTC()
			return sess
		})

	case UpdateMessage:
		return mapSession(s, act.SessionID, func(sess Session) Session {
			idx := indexOfMessage(sess.Messages, act.MessageID)
			if idx < 0 {
				return sess
			}
			msgs := make([]Message, len(sess.Messages))
			copy(msgs, sess.Messages)
			m := msgs[idx]
			if !m.IsEdited {
				m.OriginalContent = m.Content
				m.IsEdited = true
			}
			m.Content = act.Content
			msgs[idx] = m
			sess.Messages = msgs
			sess.UpdatedAt = time.Now().UTC()
			return sess
		})

	case DeleteMessage:
		return mapSession(s, act.SessionID, func(sess Session) Session {
			idx := indexOfMessage(sess.Messages, act.MessageID)
			if idx < 0 {
				return sess
			}
			msgs := make([]Message, 0, len(sess.Messages)-1)
			msgs = append(msgs, sess.Messages[:idx]...)
			msgs = append(msgs, sess.Messages[idx+1:]...)
			sess.Messages = msgs
			sess.UpdatedAt = time.Now().UTC()
			return sess
		})

	case DeleteSession:
		idx := indexOfSession(s.Sessions, act.ID)
		if idx < 0 {
			return s
		}
		sessions := make([]Session, 0, len(s.Sessions)-1)
		sessions = append(sessions, s.Sessions[:idx]...)
		sessions = append(sessions, s.Sessions[idx+1:]...)
		s.Sessions = sessions
		if s.CurrentSessionID == act.ID {
			if len(sessions) > 0 {
				s.CurrentSessionID = sessions[0].ID
			} else {
				s.CurrentSessionID = ""
			}
		}
		return s

	case SetGenerating:
		s.IsGenerating = act.Value
		return s

	case UpdateSessionTitle:
		return mapSession(s, act.SessionID, func(sess Session) Session {
			sess.Title = act.Title
			sess.UpdatedAt = time.Now().UTC()
			return sess
		})

	case TogglePin:
		return mapSession(s, act.SessionID, func(sess Session) Session {
			sess.IsPinned = !sess.IsPinned
			sess.UpdatedAt = time.Now().UTC()
			return sess
		})

	case LoadSessions:
		sessions := make([]Session, len(act.Sessions))
		copy(sessions, act.Sessions)
		s.Sessions = sessions
		if _, ok := s.Session(s.CurrentSessionID); !ok {
			s.CurrentSessionID = ""
		}
		return s

	case UpdateSettings:
		s.Settings = act.Patch.apply(s.Settings)
		return s

	case ClearAllSessions:
		s.Sessions = []Session{}
		s.CurrentSessionID = ""
		return s
	}
	return s
}

// mapSession applies fn to the session with the given id, cloning the slice.
// Unknown ids leave the state untouched.
func mapSession(s State, id string, fn func(Session) Session) State {
	idx := indexOfSession(s.Sessions, id)
	if idx < 0 {
		return s
	}
	sessions := make([]Session, len(s.Sessions))
	copy(sessions, s.Sessions)
	sessions[idx] = fn(sessions[idx])
	s.Sessions = sessions
	return s
}

func indexOfSession(sessions []Session, id string) int {
	for i := range sessions {
		if sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfMessage(msgs []Message, id string) int {
	for i := range msgs {
		if msgs[i].ID == id {
			return i
		}
	}
	return -1
}
