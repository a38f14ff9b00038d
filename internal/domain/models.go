package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Record - общий контракт для всех строк удалённого хранилища.
// Scope возвращает колонки, по которым можно фильтровать подписки на изменения.
type Record interface {
	TableName() string
	RecordID() string
	Scope() map[string]string
}

// URLs - список публичных ссылок на медиа, хранится как JSON.
type URLs = datatypes.JSONSlice[string]

// Base содержит идентификатор и время создания, общие для всех сущностей.
type Base struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

// BeforeCreate генерирует ID, если он не был задан заранее.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

func (b Base) RecordID() string { return b.ID }

// Post представляет пост форума.
type Post struct {
	Base
	UserID        string    `json:"user_id" gorm:"size:36;not null;index"`
	Title         string    `json:"title" gorm:"type:varchar(255);not null"`
	Content       string    `json:"content" gorm:"type:text;not null"`
	Category      Category  `json:"category" gorm:"type:varchar(64);not null;index"`
	RaceID        *string   `json:"race_id,omitempty" gorm:"size:36;index"`
	ImageURLs     URLs      `json:"image_urls"`
	VideoURLs     URLs      `json:"video_urls"`
	Votes         int       `json:"votes" gorm:"not null;default:0"`
	CommentsCount int       `json:"comments_count" gorm:"not null;default:0"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"not null"`
	AuthorName    string    `json:"author_name,omitempty" gorm:"-"`
	Race          *Race     `json:"-" gorm:"foreignKey:RaceID;constraint:OnDelete:CASCADE"` // только для gorm
}

func (Post) TableName() string { return "posts" }

func (p Post) Scope() map[string]string {
	s := map[string]string{"id": p.ID, "user_id": p.UserID, "category": string(p.Category)}
	if p.RaceID != nil {
		s["race_id"] = *p.RaceID
	}
	return s
}

// Comment представляет комментарий к посту.
type Comment struct {
	Base
	PostID    string    `json:"post_id" gorm:"size:36;not null;index"`
	UserID    string    `json:"user_id" gorm:"size:36;not null"`
	Content   string    `json:"content" gorm:"type:varchar(2000);not null"`
	ImageURLs URLs      `json:"image_urls"`
	VideoURLs URLs      `json:"video_urls"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
	Post      *Post     `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"` // только для gorm
}

func (Comment) TableName() string { return "comments" }

func (c Comment) Scope() map[string]string {
	return map[string]string{"id": c.ID, "post_id": c.PostID, "user_id": c.UserID}
}

// Race - событие календаря ("carrera"). При создании у неё появляется пост-компаньон.
type Race struct {
	Base
	UserID      string         `json:"user_id" gorm:"size:36;not null;index"`
	Title       string         `json:"title" gorm:"type:varchar(255);not null"`
	Description string         `json:"description" gorm:"type:text;not null"`
	Location    string         `json:"location" gorm:"type:varchar(255);not null"`
	Comuna      string         `json:"comuna" gorm:"type:varchar(128);index"`
	CanchaID    *string        `json:"cancha_id,omitempty" gorm:"size:36"`
	EventDate   datatypes.Date `json:"event_date" gorm:"not null"`
	ImageURLs   URLs           `json:"image_urls"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"not null"`
	Cancha      *Cancha        `json:"-" gorm:"foreignKey:CanchaID;constraint:OnDelete:SET NULL"` // только для gorm
}

func (Race) TableName() string { return "races" }

func (r Race) Scope() map[string]string {
	return map[string]string{"id": r.ID, "user_id": r.UserID, "comuna": r.Comuna}
}

// Date возвращает дату события без времени.
func (r Race) Date() time.Time { return time.Time(r.EventDate) }

// Cancha - площадка (ипподром), на которую ссылаются события.
type Cancha struct {
	Base
	Nombre         string    `json:"nombre" gorm:"type:varchar(255);not null"`
	Comuna         string    `json:"comuna" gorm:"type:varchar(128);not null"`
	Descripcion    string    `json:"descripcion,omitempty" gorm:"type:text"`
	Latitud        float64   `json:"latitud" gorm:"not null"`
	Longitud       float64   `json:"longitud" gorm:"not null"`
	TipoSuperficie string    `json:"tipo_superficie,omitempty" gorm:"type:varchar(64)"`
	UserID         string    `json:"user_id,omitempty" gorm:"size:36"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"not null"`
}

func (Cancha) TableName() string { return "canchas" }

func (c Cancha) Scope() map[string]string {
	return map[string]string{"id": c.ID, "user_id": c.UserID, "comuna": c.Comuna}
}

// Poll - опрос, привязанный к посту.
type Poll struct {
	Base
	PostID    string       `json:"post_id" gorm:"size:36;not null;index"`
	UserID    string       `json:"user_id" gorm:"size:36;not null"`
	Question  string       `json:"question" gorm:"type:varchar(500);not null"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
	Options   []PollOption `json:"options" gorm:"-"`
	Post      *Post        `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"` // только для gorm
}

func (Poll) TableName() string { return "polls" }

func (p Poll) Scope() map[string]string {
	return map[string]string{"id": p.ID, "post_id": p.PostID, "user_id": p.UserID}
}

// PollOption - вариант ответа. VotesCount поддерживается хранилищем.
type PollOption struct {
	Base
	PollID     string `json:"poll_id" gorm:"size:36;not null;index"`
	OptionText string `json:"option_text" gorm:"type:varchar(255);not null"`
	VotesCount int    `json:"votes_count" gorm:"not null;default:0"`
	Poll       *Poll  `json:"-" gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE"` // только для gorm
}

func (PollOption) TableName() string { return "poll_options" }

func (o PollOption) Scope() map[string]string {
	return map[string]string{"id": o.ID, "poll_id": o.PollID}
}

// PollVote - единственный голос пользователя в опросе.
type PollVote struct {
	Base
	PollID   string      `json:"poll_id" gorm:"size:36;not null;uniqueIndex:idx_poll_votes_poll_user"`
	OptionID string      `json:"option_id" gorm:"size:36;not null;index"`
	UserID   string      `json:"user_id" gorm:"size:36;not null;uniqueIndex:idx_poll_votes_poll_user"`
	Poll     *Poll       `json:"-" gorm:"foreignKey:PollID;constraint:OnDelete:CASCADE"`   // только для gorm
	Option   *PollOption `json:"-" gorm:"foreignKey:OptionID;constraint:OnDelete:CASCADE"` // только для gorm
}

func (PollVote) TableName() string { return "poll_votes" }

func (v PollVote) Scope() map[string]string {
	return map[string]string{"id": v.ID, "poll_id": v.PollID, "user_id": v.UserID}
}

// PostVote - голос пользователя за пост: -1 или +1.
type PostVote struct {
	Base
	PostID   string `json:"post_id" gorm:"size:36;not null;uniqueIndex:idx_post_votes_post_user"`
	UserID   string `json:"user_id" gorm:"size:36;not null;uniqueIndex:idx_post_votes_post_user"`
	VoteType int    `json:"vote_type" gorm:"not null"`
	Post     *Post  `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"` // только для gorm
}

func (PostVote) TableName() string { return "post_votes" }

func (v PostVote) Scope() map[string]string {
	return map[string]string{"id": v.ID, "post_id": v.PostID, "user_id": v.UserID}
}

// PostAttendee - отметка "иду" на пост предстоящего события.
type PostAttendee struct {
	Base
	PostID string `json:"post_id" gorm:"size:36;not null;uniqueIndex:idx_post_attendees_post_user"`
	UserID string `json:"user_id" gorm:"size:36;not null;uniqueIndex:idx_post_attendees_post_user"`
	Post   *Post  `json:"-" gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"` // только для gorm
}

func (PostAttendee) TableName() string { return "post_attendees" }

func (a PostAttendee) Scope() map[string]string {
	return map[string]string{"id": a.ID, "post_id": a.PostID, "user_id": a.UserID}
}

// DirectMessage - личное сообщение. Сущности "диалог" в хранилище нет.
type DirectMessage struct {
	Base
	SenderID   string     `json:"sender_id" gorm:"size:36;not null;index"`
	ReceiverID string     `json:"receiver_id" gorm:"size:36;not null;index"`
	Content    string     `json:"content" gorm:"type:text;not null"`
	ReadAt     *time.Time `json:"read_at"`
}

func (DirectMessage) TableName() string { return "direct_messages" }

func (m DirectMessage) Scope() map[string]string {
	return map[string]string{"id": m.ID, "sender_id": m.SenderID, "receiver_id": m.ReceiverID}
}

// Counterpart возвращает собеседника относительно пользователя me.
func (m DirectMessage) Counterpart(me string) string {
	if m.SenderID == me {
		return m.ReceiverID
	}
	return m.SenderID
}

// Profile - профиль пользователя. ID совпадает с ID провайдера идентификации.
type Profile struct {
	Base
	DisplayName    *string      `json:"display_name"`
	Bio            *string      `json:"bio"`
	AvatarURL      *string      `json:"avatar_url"`
	Phone          *string      `json:"phone,omitempty"`
	ContactEmail   *string      `json:"contact_email,omitempty"`
	Comuna         *string      `json:"comuna,omitempty"`
	RoleOwner      bool         `json:"role_owner"`
	RoleCorral     bool         `json:"role_corral"`
	RoleAficionado bool         `json:"role_aficionado"`
	RoleJinete     bool         `json:"role_jinete"`
	RolePreparador bool         `json:"role_preparador"`
	PrimaryRole    *PrimaryRole `json:"primary_role,omitempty" gorm:"type:varchar(32)"`
	UpdatedAt      time.Time    `json:"updated_at" gorm:"not null"`
}

func (Profile) TableName() string { return "profiles" }

func (p Profile) Scope() map[string]string { return map[string]string{"id": p.ID} }

// Name возвращает отображаемое имя или пустую строку.
func (p Profile) Name() string {
	if p.DisplayName == nil {
		return ""
	}
	return *p.DisplayName
}

// CarouselSlide - слайд баннера на главной странице.
type CarouselSlide struct {
	Base
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Description *string   `json:"description"`
	ImageURL    string    `json:"image_url" gorm:"not null"`
	LinkURL     *string   `json:"link_url"`
	ButtonText  *string   `json:"button_text"`
	IsActive    bool      `json:"is_active" gorm:"not null;index"`
	OrderIndex  int       `json:"order_index" gorm:"not null;default:0"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

func (CarouselSlide) TableName() string { return "carousel_slides" }

func (s CarouselSlide) Scope() map[string]string { return map[string]string{"id": s.ID} }

// Models возвращает все модели в порядке миграции.
func Models() []any {
	return []any{
		&Profile{}, &Cancha{}, &Race{}, &Post{}, &Comment{},
		&Poll{}, &PollOption{}, &PollVote{}, &PostVote{}, &PostAttendee{},
		&DirectMessage{}, &CarouselSlide{},
	}
}
