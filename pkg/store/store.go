package store

import (
	"time"

	"converse/pkg/domain"
)

// Store defines persistence operations for users, personalities,
// conversations, messages, and poster sessions.
type Store interface {
	// users
	CreateUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// personalities
	SavePersonality(domain.Personality) error
	GetPersonality(id string) (domain.Personality, bool, error)
	GetPersonalityByName(name string) (domain.Personality, bool, error)
	SearchPersonalityByName(query string) (domain.Personality, bool, error)
	ListPersonalities(search string, featuredOnly bool, offset, limit int) ([]domain.Personality, int64, error)

	// conversations
	EnsureConversation(userID, personalityID string) (domain.Conversation, error)
	GetConversation(userID, personalityID string) (domain.Conversation, bool, error)
	ClearMessages(conversationID string) error

	// messages
	RecentMessages(conversationID string, limit int) ([]domain.Message, error)
	ListMessages(conversationID string, offset, limit int) ([]domain.Message, int64, error)
	AppendExchange(conversationID string, userTurn, modelTurn domain.Message) error

	// poster sessions
	CreatePosterSession(domain.PosterSession) error
	GetPosterSession(sessionID string) (domain.PosterSession, bool, error)
	SetPosterCheckout(sessionID, stripeSessionID string) error
	MarkPosterPaid(sessionID, email, posterURL string) error
	MarkPosterFailed(sessionID string) error
}

// SessionStore issues and validates signed session tokens.
type SessionStore interface {
	NewSession(userID, email string) (string, error)
	VerifySession(token string) (SessionClaims, error)
	DeleteSession(token string) error
}

// SessionClaims is the identity embedded in a session token.
type SessionClaims struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}
