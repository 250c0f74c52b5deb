package domain

import "time"

type PosterStatus string

const (
	PosterPending PosterStatus = "pending"
	PosterPaid    PosterStatus = "paid"
	PosterFailed  PosterStatus = "failed"
)

// Chat turn roles as the generation API expects them.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Personality bundles a persona's public display metadata with the private
// system instruction used as the LLM prompt.
type Personality struct {
	ID                string        `json:"_id"`
	FirstName         string        `json:"firstName,omitempty"`
	LastName          string        `json:"lastName,omitempty"`
	FullName          string        `json:"fullName"`
	Type              string        `json:"type,omitempty"`
	MetaTitle         string        `json:"metaTitle,omitempty"`
	MetaKeywords      string        `json:"metaKeywords,omitempty"`
	MetaDescription   string        `json:"metaDescription,omitempty"`
	HeroTitle         string        `json:"heroTitle,omitempty"`
	HeroDescription   string        `json:"heroDescription,omitempty"`
	FAQ               []FAQEntry    `json:"faq,omitempty"`
	SystemInstruction string        `json:"systemInstruction,omitempty"`
	ImgURL            string        `json:"imgUrl,omitempty"`
	Fee               float64       `json:"fee,omitempty"`
	CutFee            float64       `json:"cutFee,omitempty"`
	Featured          bool          `json:"featured"`
	Features          []FeatureCard `json:"features,omitempty"`
	Testimonials      []Testimonial `json:"testimonials,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Public strips the instruction and pricing fields for catalog responses.
func (p Personality) Public() Personality {
	p.SystemInstruction = ""
	p.Fee = 0
	p.CutFee = 0
	return p
}

type FAQEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type FeatureCard struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Colspan     int    `json:"colspan"`
}

type Testimonial struct {
	Message string `json:"message"`
	Author  string `json:"author"`
	Role    string `json:"role"`
	Avatar  string `json:"avatar"`
}

// Conversation is the unique thread linking one user to one personality.
// PersonalityID is empty for the default, unscoped assistant thread.
type Conversation struct {
	ID            string    `json:"_id"`
	UserID        string    `json:"user"`
	PersonalityID string    `json:"personality,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Message struct {
	ID             string    `json:"_id"`
	ConversationID string    `json:"-"`
	Role           string    `json:"role"`
	Parts          string    `json:"parts"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Turn is the minimal role/text projection sent to the generation proxy.
type Turn struct {
	Role  string `json:"role"`
	Parts string `json:"parts"`
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PosterSession is the checkout/render record for one poster purchase.
type PosterSession struct {
	SessionID       string       `json:"sessionId"`
	CanvasImage     string       `json:"-"`
	PosterName      string       `json:"posterName"`
	TextSize        float64      `json:"textSize"`
	TextPosition    Point        `json:"textPosition"`
	ImagePosition   Point        `json:"imagePosition"`
	ImageSize       Size         `json:"imageSize"`
	Email           string       `json:"email,omitempty"`
	StripeSessionID string       `json:"-"`
	PosterURL       string       `json:"posterUrl,omitempty"`
	Status          PosterStatus `json:"status"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}
