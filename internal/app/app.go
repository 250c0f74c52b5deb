package app

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"converse/pkg/ai"
	"converse/pkg/auth"
	"converse/pkg/domain"
	"converse/pkg/mailer"
	"converse/pkg/payment"
	"converse/pkg/poster"
	"converse/pkg/storage"
	"converse/pkg/store"
)

const defaultHistoryLimit = 20

// defaultSystemInstruction steers turns on the default thread, where no
// personality is selected.
const defaultSystemInstruction = "You are a factual AI assistant named Converse. You can access and process information from the real world to answer user questions in a comprehensive and informative way."

var hexIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// Config holds the collaborators the application service needs.
type Config struct {
	Store        store.Store
	Sessions     store.SessionStore
	Generator    ai.ChatGenerator
	Stylizer     ai.ImageStylizer
	Checkout     payment.CheckoutProvider
	Events       payment.EventVerifier
	Mailer       mailer.Mailer
	Objects      storage.ObjectStore
	Renderer     *poster.Renderer
	HistoryLimit int
	// DefaultInstruction overrides the built-in default-thread system
	// instruction when set.
	DefaultInstruction string
}

// App is the core application service wiring storage, auth, generation and
// the poster pipeline together.
type App struct {
	store        store.Store
	sessions     store.SessionStore
	generator    ai.ChatGenerator
	stylizer     ai.ImageStylizer
	checkout     payment.CheckoutProvider
	events       payment.EventVerifier
	mailer       mailer.Mailer
	objects      storage.ObjectStore
	renderer           *poster.Renderer
	historyLimit       int
	defaultInstruction string
}

// New constructs the application service.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("chat generator required")
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	instruction := strings.TrimSpace(cfg.DefaultInstruction)
	if instruction == "" {
		instruction = defaultSystemInstruction
	}
	return &App{
		store:              cfg.Store,
		sessions:           cfg.Sessions,
		generator:          cfg.Generator,
		stylizer:           cfg.Stylizer,
		checkout:           cfg.Checkout,
		events:             cfg.Events,
		mailer:             cfg.Mailer,
		objects:            cfg.Objects,
		renderer:           cfg.Renderer,
		historyLimit:       historyLimit,
		defaultInstruction: instruction,
	}, nil
}

// Signup registers a new account and returns a session token for it.
func (a *App) Signup(name, email, password string) (domain.User, string, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return domain.User{}, "", ErrInvalidCredentials
	}
	taken, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.User{}, "", ErrEmailTaken
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           store.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("create user: %w", err)
	}
	token, err := a.sessions.NewSession(user.ID, user.Email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login checks credentials and returns the user with a fresh session token.
// Unknown emails and wrong passwords fail with distinct errors so the API
// can keep the original status codes for each.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, "", ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrUnknownUser
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrWrongPassword
	}
	token, err := a.sessions.NewSession(user.ID, user.Email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Verify resolves a session token to its user.
func (a *App) Verify(token string) (domain.User, error) {
	claims, err := a.sessions.VerifySession(token)
	if err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByID(claims.UserID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUnknownUser
	}
	return user, nil
}

// Logout revokes the session token.
func (a *App) Logout(token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return a.sessions.DeleteSession(token)
}

// SendMessage runs one chat turn against the personality's thread. Nothing
// is persisted unless the generation call succeeds.
func (a *App) SendMessage(ctx context.Context, user domain.User, personalityID, message string) (domain.Turn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return domain.Turn{}, ErrEmptyMessage
	}
	systemInstruction := a.defaultInstruction
	if personalityID != "" {
		if !hexIDPattern.MatchString(personalityID) {
			return domain.Turn{}, ErrInvalidPersonalityID
		}
		personality, ok, err := a.store.GetPersonality(personalityID)
		if err != nil {
			return domain.Turn{}, fmt.Errorf("load personality: %w", err)
		}
		if !ok {
			return domain.Turn{}, ErrPersonalityNotFound
		}
		systemInstruction = personality.SystemInstruction
	}

	conversation, err := a.store.EnsureConversation(user.ID, personalityID)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("ensure conversation: %w", err)
	}
	recent, err := a.store.RecentMessages(conversation.ID, a.historyLimit)
	if err != nil {
		return domain.Turn{}, fmt.Errorf("load history: %w", err)
	}
	history := make([]domain.Turn, 0, len(recent))
	for _, msg := range recent {
		history = append(history, domain.Turn{Role: msg.Role, Parts: msg.Parts})
	}

	reply, err := a.generator.GenerateChat(ctx, history, message, systemInstruction)
	if err != nil {
		slog.Error("chat generation failed", "error", err, "conversation_id", conversation.ID)
		return domain.Turn{}, ErrGenerationUnavailable
	}

	now := time.Now().UTC()
	userTurn := domain.Message{
		ID:             store.NewID(),
		ConversationID: conversation.ID,
		Role:           domain.RoleUser,
		Parts:          message,
		CreatedAt:      now,
	}
	modelTurn := domain.Message{
		ID:             store.NewID(),
		ConversationID: conversation.ID,
		Role:           domain.RoleModel,
		Parts:          reply,
		CreatedAt:      now.Add(time.Millisecond),
	}
	if err := a.store.AppendExchange(conversation.ID, userTurn, modelTurn); err != nil {
		return domain.Turn{}, fmt.Errorf("save exchange: %w", err)
	}
	return domain.Turn{Role: domain.RoleModel, Parts: reply}, nil
}

// History returns the most recent turns of the personality's thread in
// chronological order.
func (a *App) History(user domain.User, personalityID string) ([]domain.Turn, error) {
	if personalityID != "" && !hexIDPattern.MatchString(personalityID) {
		return nil, ErrInvalidPersonalityID
	}
	conversation, ok, err := a.store.GetConversation(user.ID, personalityID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		return []domain.Turn{}, nil
	}
	messages, err := a.store.RecentMessages(conversation.ID, a.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	turns := make([]domain.Turn, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, domain.Turn{Role: msg.Role, Parts: msg.Parts})
	}
	return turns, nil
}

// ClearHistory deletes all turns of the personality's thread.
func (a *App) ClearHistory(user domain.User, personalityID string) error {
	if personalityID != "" {
		if !hexIDPattern.MatchString(personalityID) {
			return ErrInvalidPersonalityID
		}
		if _, ok, err := a.store.GetPersonality(personalityID); err != nil {
			return fmt.Errorf("load personality: %w", err)
		} else if !ok {
			return ErrPersonalityNotFound
		}
	}
	conversation, ok, err := a.store.GetConversation(user.ID, personalityID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		return ErrConversationNotFound
	}
	return a.store.ClearMessages(conversation.ID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MessagesPage is one ascending page of a conversation's messages.
type MessagesPage struct {
	Conversation domain.Conversation
	Messages     []domain.Message
	Total        int64
	Page         int
	PerPage      int
	TotalPages   int
}

// PersonalityMessages returns the conversation and one page of its
// messages in chronological order.
func (a *App) PersonalityMessages(user domain.User, personalityID string, page, perPage int) (MessagesPage, error) {
	if personalityID != "" && !hexIDPattern.MatchString(personalityID) {
		return MessagesPage{}, ErrInvalidPersonalityID
	}
	if personalityID != "" {
		if _, ok, err := a.store.GetPersonality(personalityID); err != nil {
			return MessagesPage{}, fmt.Errorf("load personality: %w", err)
		} else if !ok {
			return MessagesPage{}, ErrPersonalityNotFound
		}
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	conversation, ok, err := a.store.GetConversation(user.ID, personalityID)
	if err != nil {
		return MessagesPage{}, fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		return MessagesPage{Messages: []domain.Message{}, Page: page, PerPage: perPage}, nil
	}
	offset := (page - 1) * perPage
	messages, total, err := a.store.ListMessages(conversation.ID, offset, perPage)
	if err != nil {
		return MessagesPage{}, fmt.Errorf("list messages: %w", err)
	}
	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	return MessagesPage{
		Conversation: conversation,
		Messages:     messages,
		Total:        total,
		Page:         page,
		PerPage:      perPage,
		TotalPages:   totalPages,
	}, nil
}
