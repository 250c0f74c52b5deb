package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"converse/pkg/domain"
)

const migrateLockID int64 = 52815281

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB, ensures pg_trgm, and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS pg_trgm").Error; err != nil {
			return fmt.Errorf("create pg_trgm extension: %w", err)
		}
		if err := tx.AutoMigrate(
			&UserModel{},
			&PersonalityModel{},
			&ConversationModel{},
			&MessageModel{},
			&PosterSessionModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM message_models m
				WHERE NOT EXISTS (SELECT 1 FROM conversation_models c WHERE c.id = m.conversation_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'message_models'
					AND constraint_name = 'message_models_conversation_id_fkey'
				) THEN
					ALTER TABLE message_models
					ADD CONSTRAINT message_models_conversation_id_fkey
					FOREIGN KEY (conversation_id) REFERENCES conversation_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure message foreign key: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser registers a new user.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("lower(email) = lower(?)", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("lower(email) = lower(?)", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SavePersonality stores or updates a personality definition.
func (s *GormStore) SavePersonality(p domain.Personality) error {
	model := personalityToModel(p)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"first_name", "last_name", "full_name", "type",
			"meta_title", "meta_keywords", "meta_description",
			"hero_title", "hero_description", "faq", "system_instruction",
			"img_url", "fee", "cut_fee", "featured", "features",
			"testimonials", "updated_at",
		}),
	}).Create(&model).Error
}

// GetPersonality returns one personality by ID.
func (s *GormStore) GetPersonality(id string) (domain.Personality, bool, error) {
	var model PersonalityModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Personality{}, false, nil
		}
		return domain.Personality{}, false, err
	}
	return personalityFromModel(model), true, nil
}

// GetPersonalityByName returns the exact case-insensitive full-name match.
func (s *GormStore) GetPersonalityByName(name string) (domain.Personality, bool, error) {
	var model PersonalityModel
	if err := s.db.Where("lower(full_name) = lower(?)", strings.TrimSpace(name)).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Personality{}, false, nil
		}
		return domain.Personality{}, false, err
	}
	return personalityFromModel(model), true, nil
}

// SearchPersonalityByName returns the best fuzzy full-name match, if any.
// Ranking is whatever pg_trgm similarity produces; no re-ranking.
func (s *GormStore) SearchPersonalityByName(query string) (domain.Personality, bool, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	var models []PersonalityModel
	if err := s.db.
		Where("full_name % ?", query).
		Order(clause.Expr{SQL: "similarity(full_name, ?) DESC", Vars: []any{query}}).
		Limit(1).
		Find(&models).Error; err != nil {
		return domain.Personality{}, false, err
	}
	if len(models) == 0 {
		return domain.Personality{}, false, nil
	}
	return personalityFromModel(models[0]), true, nil
}

// ListPersonalities pages through the catalog with optional featured filter
// and fuzzy full-name search. The second return is the total matching count.
func (s *GormStore) ListPersonalities(search string, featuredOnly bool, offset, limit int) ([]domain.Personality, int64, error) {
	base := s.db.Model(&PersonalityModel{})
	if featuredOnly {
		base = base.Where("featured = ?", true)
	}
	search = strings.ToLower(strings.TrimSpace(search))
	if search != "" {
		base = base.Where("full_name % ?", search)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Session(&gorm.Session{})
	if search != "" {
		query = query.Order(clause.Expr{SQL: "similarity(full_name, ?) DESC", Vars: []any{search}})
	} else {
		query = query.Order("created_at ASC")
	}
	var models []PersonalityModel
	if err := query.Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	items := make([]domain.Personality, 0, len(models))
	for _, model := range models {
		items = append(items, personalityFromModel(model))
	}
	return items, total, nil
}

// EnsureConversation finds or atomically creates the (user, personality)
// thread. Concurrent first messages race on a single insert-if-absent, so
// at most one row results.
func (s *GormStore) EnsureConversation(userID, personalityID string) (domain.Conversation, error) {
	now := time.Now().UTC()
	model := ConversationModel{
		ID:            NewID(),
		UserID:        userID,
		PersonalityID: personalityID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "personality_id"}},
		DoNothing: true,
	}).Create(&model).Error; err != nil {
		return domain.Conversation{}, err
	}
	// Re-read: on conflict the insert was a no-op and another row owns the pair.
	var existing ConversationModel
	if err := s.db.Where("user_id = ? AND personality_id = ?", userID, personalityID).First(&existing).Error; err != nil {
		return domain.Conversation{}, err
	}
	return conversationFromModel(existing), nil
}

// GetConversation returns the thread for the pair without creating it.
func (s *GormStore) GetConversation(userID, personalityID string) (domain.Conversation, bool, error) {
	var model ConversationModel
	if err := s.db.Where("user_id = ? AND personality_id = ?", userID, personalityID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Conversation{}, false, nil
		}
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// ClearMessages removes every turn of a conversation.
func (s *GormStore) ClearMessages(conversationID string) error {
	return s.db.Delete(&MessageModel{}, "conversation_id = ?", conversationID).Error
}

// RecentMessages returns the newest limit turns in chronological order
// (newest-first query, then reversed).
func (s *GormStore) RecentMessages(conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	var models []MessageModel
	if err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		msgs = append(msgs, messageFromModel(models[i]))
	}
	return msgs, nil
}

// ListMessages pages through a conversation oldest-first and returns the
// total turn count.
func (s *GormStore) ListMessages(conversationID string, offset, limit int) ([]domain.Message, int64, error) {
	var total int64
	if err := s.db.Model(&MessageModel{}).Where("conversation_id = ?", conversationID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []MessageModel
	if err := s.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, model := range models {
		msgs = append(msgs, messageFromModel(model))
	}
	return msgs, total, nil
}

// AppendExchange persists the user turn and the model turn in one
// transaction, so a crash cannot leave a dangling user turn.
func (s *GormStore) AppendExchange(conversationID string, userTurn, modelTurn domain.Message) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		userModel := messageToModel(userTurn)
		userModel.ConversationID = conversationID
		if err := tx.Create(&userModel).Error; err != nil {
			return err
		}
		modelModel := messageToModel(modelTurn)
		modelModel.ConversationID = conversationID
		if err := tx.Create(&modelModel).Error; err != nil {
			return err
		}
		return tx.Model(&ConversationModel{}).
			Where("id = ?", conversationID).
			Update("updated_at", time.Now().UTC()).Error
	})
}

// CreatePosterSession stores a new pending checkout/render record.
func (s *GormStore) CreatePosterSession(ps domain.PosterSession) error {
	model := posterToModel(ps)
	return s.db.Create(&model).Error
}

// GetPosterSession returns one poster session by its public session id.
func (s *GormStore) GetPosterSession(sessionID string) (domain.PosterSession, bool, error) {
	var model PosterSessionModel
	if err := s.db.First(&model, "session_id = ?", sessionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.PosterSession{}, false, nil
		}
		return domain.PosterSession{}, false, err
	}
	return posterFromModel(model), true, nil
}

// SetPosterCheckout links the payment processor's checkout id.
func (s *GormStore) SetPosterCheckout(sessionID, stripeSessionID string) error {
	return s.db.Model(&PosterSessionModel{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"stripe_session_id": stripeSessionID,
			"updated_at":        time.Now().UTC(),
		}).Error
}

// MarkPosterPaid records the payer email and rendered poster URL.
func (s *GormStore) MarkPosterPaid(sessionID, email, posterURL string) error {
	return s.db.Model(&PosterSessionModel{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"status":     string(domain.PosterPaid),
			"email":      email,
			"poster_url": posterURL,
			"updated_at": time.Now().UTC(),
		}).Error
}

// MarkPosterFailed flags an expired or cancelled checkout.
func (s *GormStore) MarkPosterFailed(sessionID string) error {
	return s.db.Model(&PosterSessionModel{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"status":     string(domain.PosterFailed),
			"updated_at": time.Now().UTC(),
		}).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func personalityToModel(p domain.Personality) PersonalityModel {
	faq, _ := json.Marshal(p.FAQ)
	features, _ := json.Marshal(p.Features)
	testimonials, _ := json.Marshal(p.Testimonials)
	return PersonalityModel{
		ID:                p.ID,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		FullName:          p.FullName,
		Type:              p.Type,
		MetaTitle:         p.MetaTitle,
		MetaKeywords:      p.MetaKeywords,
		MetaDescription:   p.MetaDescription,
		HeroTitle:         p.HeroTitle,
		HeroDescription:   p.HeroDescription,
		FAQ:               faq,
		SystemInstruction: p.SystemInstruction,
		ImgURL:            p.ImgURL,
		Fee:               p.Fee,
		CutFee:            p.CutFee,
		Featured:          p.Featured,
		Features:          features,
		Testimonials:      testimonials,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func personalityFromModel(m PersonalityModel) domain.Personality {
	var faq []domain.FAQEntry
	if len(m.FAQ) > 0 {
		_ = json.Unmarshal(m.FAQ, &faq)
	}
	var features []domain.FeatureCard
	if len(m.Features) > 0 {
		_ = json.Unmarshal(m.Features, &features)
	}
	var testimonials []domain.Testimonial
	if len(m.Testimonials) > 0 {
		_ = json.Unmarshal(m.Testimonials, &testimonials)
	}
	return domain.Personality{
		ID:                m.ID,
		FirstName:         m.FirstName,
		LastName:          m.LastName,
		FullName:          m.FullName,
		Type:              m.Type,
		MetaTitle:         m.MetaTitle,
		MetaKeywords:      m.MetaKeywords,
		MetaDescription:   m.MetaDescription,
		HeroTitle:         m.HeroTitle,
		HeroDescription:   m.HeroDescription,
		FAQ:               faq,
		SystemInstruction: m.SystemInstruction,
		ImgURL:            m.ImgURL,
		Fee:               m.Fee,
		CutFee:            m.CutFee,
		Featured:          m.Featured,
		Features:          features,
		Testimonials:      testimonials,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:            m.ID,
		UserID:        m.UserID,
		PersonalityID: m.PersonalityID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Parts:          msg.Parts,
		CreatedAt:      msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Parts:          m.Parts,
		CreatedAt:      m.CreatedAt,
	}
}

func posterToModel(ps domain.PosterSession) PosterSessionModel {
	return PosterSessionModel{
		SessionID:       ps.SessionID,
		CanvasImage:     ps.CanvasImage,
		PosterName:      ps.PosterName,
		TextSize:        ps.TextSize,
		TextX:           ps.TextPosition.X,
		TextY:           ps.TextPosition.Y,
		ImageX:          ps.ImagePosition.X,
		ImageY:          ps.ImagePosition.Y,
		ImageWidth:      ps.ImageSize.Width,
		ImageHeight:     ps.ImageSize.Height,
		Email:           ps.Email,
		StripeSessionID: ps.StripeSessionID,
		PosterURL:       ps.PosterURL,
		Status:          string(ps.Status),
		CreatedAt:       ps.CreatedAt,
		UpdatedAt:       ps.UpdatedAt,
	}
}

func posterFromModel(m PosterSessionModel) domain.PosterSession {
	status := domain.PosterStatus(m.Status)
	if status == "" {
		status = domain.PosterPending
	}
	return domain.PosterSession{
		SessionID:       m.SessionID,
		CanvasImage:     m.CanvasImage,
		PosterName:      m.PosterName,
		TextSize:        m.TextSize,
		TextPosition:    domain.Point{X: m.TextX, Y: m.TextY},
		ImagePosition:   domain.Point{X: m.ImageX, Y: m.ImageY},
		ImageSize:       domain.Size{Width: m.ImageWidth, Height: m.ImageHeight},
		Email:           m.Email,
		StripeSessionID: m.StripeSessionID,
		PosterURL:       m.PosterURL,
		Status:          status,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
