package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"converse/pkg/domain"
)

// MemoryStore is an in-memory Store for tests and single-node development.
type MemoryStore struct {
	mu            sync.Mutex
	users         map[string]domain.User
	personalities map[string]domain.Personality
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message
	posters       map[string]domain.PosterSession
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]domain.User),
		personalities: make(map[string]domain.Personality),
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
		posters:       make(map[string]domain.PosterSession),
	}
}

func (s *MemoryStore) CreateUser(u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) HasUserEmail(email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) SavePersonality(p domain.Personality) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personalities[p.ID] = p
	return nil
}

func (s *MemoryStore) GetPersonality(id string) (domain.Personality, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.personalities[id]
	return p, ok, nil
}

func (s *MemoryStore) GetPersonalityByName(name string) (domain.Personality, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.TrimSpace(name)
	for _, p := range s.personalities {
		if strings.EqualFold(p.FullName, name) {
			return p, true, nil
		}
	}
	return domain.Personality{}, false, nil
}

// SearchPersonalityByName approximates the fuzzy index with a
// case-insensitive substring match.
func (s *MemoryStore) SearchPersonalityByName(query string) (domain.Personality, bool, error) {
	matches, _ := s.searchLocked(query, false)
	if len(matches) == 0 {
		return domain.Personality{}, false, nil
	}
	return matches[0], true, nil
}

func (s *MemoryStore) ListPersonalities(search string, featuredOnly bool, offset, limit int) ([]domain.Personality, int64, error) {
	var matches []domain.Personality
	if strings.TrimSpace(search) != "" {
		matches, _ = s.searchLocked(search, featuredOnly)
	} else {
		s.mu.Lock()
		for _, p := range s.personalities {
			if featuredOnly && !p.Featured {
				continue
			}
			matches = append(matches, p)
		}
		s.mu.Unlock()
		sort.Slice(matches, func(i, j int) bool {
			return matches[i].CreatedAt.Before(matches[j].CreatedAt)
		})
	}
	total := int64(len(matches))
	if offset >= len(matches) {
		return []domain.Personality{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], total, nil
}

func (s *MemoryStore) searchLocked(query string, featuredOnly bool) ([]domain.Personality, int64) {
	query = strings.ToLower(strings.TrimSpace(query))
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []domain.Personality
	for _, p := range s.personalities {
		if featuredOnly && !p.Featured {
			continue
		}
		if strings.Contains(strings.ToLower(p.FullName), query) {
			matches = append(matches, p)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].FullName < matches[j].FullName
	})
	return matches, int64(len(matches))
}

func (s *MemoryStore) EnsureConversation(userID, personalityID string) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.UserID == userID && c.PersonalityID == personalityID {
			return c, nil
		}
	}
	now := time.Now().UTC()
	c := domain.Conversation{
		ID:            NewID(),
		UserID:        userID,
		PersonalityID: personalityID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.conversations[c.ID] = c
	return c, nil
}

func (s *MemoryStore) GetConversation(userID, personalityID string) (domain.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.UserID == userID && c.PersonalityID == personalityID {
			return c, true, nil
		}
	}
	return domain.Conversation{}, false, nil
}

func (s *MemoryStore) ClearMessages(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, conversationID)
	return nil
}

func (s *MemoryStore) RecentMessages(conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) ListMessages(conversationID string, offset, limit int) ([]domain.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[conversationID]
	total := int64(len(msgs))
	if offset >= len(msgs) {
		return []domain.Message{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(msgs) {
		end = len(msgs)
	}
	out := make([]domain.Message, end-offset)
	copy(out, msgs[offset:end])
	return out, total, nil
}

func (s *MemoryStore) AppendExchange(conversationID string, userTurn, modelTurn domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	userTurn.ConversationID = conversationID
	modelTurn.ConversationID = conversationID
	s.messages[conversationID] = append(s.messages[conversationID], userTurn, modelTurn)
	if c, ok := s.conversations[conversationID]; ok {
		c.UpdatedAt = time.Now().UTC()
		s.conversations[conversationID] = c
	}
	return nil
}

func (s *MemoryStore) CreatePosterSession(ps domain.PosterSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posters[ps.SessionID] = ps
	return nil
}

func (s *MemoryStore) GetPosterSession(sessionID string) (domain.PosterSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.posters[sessionID]
	return ps, ok, nil
}

func (s *MemoryStore) SetPosterCheckout(sessionID, stripeSessionID string) error {
	return s.updatePoster(sessionID, func(ps *domain.PosterSession) {
		ps.StripeSessionID = stripeSessionID
	})
}

func (s *MemoryStore) MarkPosterPaid(sessionID, email, posterURL string) error {
	return s.updatePoster(sessionID, func(ps *domain.PosterSession) {
		ps.Status = domain.PosterPaid
		ps.Email = email
		ps.PosterURL = posterURL
	})
}

func (s *MemoryStore) MarkPosterFailed(sessionID string) error {
	return s.updatePoster(sessionID, func(ps *domain.PosterSession) {
		ps.Status = domain.PosterFailed
	})
}

func (s *MemoryStore) updatePoster(sessionID string, mutate func(*domain.PosterSession)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ps, ok := s.posters[sessionID]
	if !ok {
		return nil
	}
	mutate(&ps)
	ps.UpdatedAt = time.Now().UTC()
	s.posters[sessionID] = ps
	return nil
}
