package api

import (
	"net/http"
	"time"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/hooks"
	"github.com/go-chi/chi/v5"
)

func (s *Server) routes(r chi.Router) {
	r.Route("/posts", func(r chi.Router) {
		r.Get("/", s.listPosts)
		r.Post("/", s.createPost)
		r.Get("/categories", s.postCategories)
		r.Route("/{postID}", func(r chi.Router) {
			r.Patch("/", s.updatePost)
			r.Delete("/", s.deletePost)

			r.Get("/comments", s.listComments)
			r.Post("/comments", s.createComment)
			r.Get("/comments/count", s.countComments)
			r.Patch("/comments/{commentID}", s.updateComment)
			r.Delete("/comments/{commentID}", s.deleteComment)

			r.Get("/vote", s.getPostVote)
			r.Post("/vote", s.votePost)

			r.Get("/attendance", s.getAttendance)
			r.Post("/attendance", s.toggleAttendance)

			r.Get("/polls", s.listPolls)
			r.Post("/polls", s.createPoll)
			r.Delete("/polls/{pollID}", s.deletePoll)
			r.Post("/polls/{pollID}/options", s.addPollOption)
			r.Post("/polls/{pollID}/vote", s.votePoll)
		})
	})

	r.Get("/races", s.listRaces)
	r.Post("/races", s.createRace)
	r.Delete("/races/{raceID}", s.deleteRace)

	r.Get("/canchas", s.listCanchas)
	r.Post("/canchas", s.createCancha)
	r.Get("/canchas/{canchaID}", s.getCancha)

	r.Get("/profiles", s.listProfiles)
	r.Get("/profiles/{profileID}", s.getPublicProfile)

	r.Get("/profile", s.getProfile)
	r.Patch("/profile", s.updateProfile)
	r.Post("/profile/avatar", s.uploadAvatar)

	r.Get("/carousel", s.listCarousel)

	r.Get("/messages", s.listMessages)
	r.Post("/messages", s.sendMessage)
	r.Get("/messages/conversations", s.listConversations)
	r.Get("/messages/with/{partnerID}", s.messageThread)
	r.Post("/messages/{messageID}/read", s.markMessageRead)
}

// === Posts ===

type postBody struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  string   `json:"category"`
	ImageURLs []string `json:"image_urls"`
	VideoURLs []string `json:"video_urls"`
}

func (b postBody) input(f form) hooks.PostInput {
	return hooks.PostInput{
		Title:     b.Title,
		Content:   b.Content,
		Category:  domain.Category(b.Category),
		ImageURLs: b.ImageURLs,
		VideoURLs: b.VideoURLs,
		Files:     f.all("files"),
	}
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	posts := hooks.NewPosts(q.deps)
	defer posts.Close()
	if err := posts.Load(r.Context()); err != nil {
		q.fail(w, err)
		return
	}
	out := posts.Search(r.URL.Query().Get("q"))
	if raw := r.URL.Query().Get("category"); raw != "" {
		category, err := domain.ParseCategory(raw)
		if err != nil {
			q.fail(w, badRequest(err))
			return
		}
		filtered := out[:0]
		for _, p := range out {
			if p.Category == category {
				filtered = append(filtered, p)
			}
		}
		out = filtered
	}
	q.reply(w, http.StatusOK, nonNil(out))
}

func (s *Server) postCategories(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	posts := hooks.NewPosts(q.deps)
	defer posts.Close()
	err := posts.Load(r.Context())
	q.respond(w, http.StatusOK, posts.CategoryCounts(), err)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	var body postBody
	f, err := bind(r, &body)
	if err != nil {
		q.fail(w, err)
		return
	}
	post, err := hooks.NewPosts(q.deps).Create(r.Context(), body.input(f))
	q.respond(w, http.StatusCreated, post, err)
}

func (s *Server) updatePost(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	var body postBody
	f, err := bind(r, &body)
	if err != nil {
		q.fail(w, err)
		return
	}
	post, err := hooks.NewPosts(q.deps).Update(r.Context(), chi.URLParam(r, "postID"), body.input(f))
	q.respond(w, http.StatusOK, post, err)
}

func (s *Server) deletePost(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	err := hooks.NewPosts(q.deps).Delete(r.Context(), chi.URLParam(r, "postID"))
	q.respond(w, http.StatusOK, nil, err)
}

// === Comments ===

type commentBody struct {
	Content string `json:"content"`
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	comments := hooks.NewComments(q.deps, chi.URLParam(r, "postID"))
	defer comments.Close()
	err := comments.Load(r.Context())
	q.respond(w, http.StatusOK, nonNil(comments.Items()), err)
}

func (s *Server) countComments(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	comments := hooks.NewComments(q.deps, chi.URLParam(r, "postID"))
	defer comments.Close()
	err := comments.WatchCount(r.Context())
	q.respond(w, http.StatusOK, map[string]int{"count": comments.Count()}, err)
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	var body commentBody
	f, err := bind(r, &body)
	if err != nil {
		q.fail(w, err)
		return
	}
	comment, err := hooks.NewComments(q.deps, chi.URLParam(r, "postID")).
		Create(r.Context(), hooks.CommentInput{Content: body.Content, Files: f.all("files")})
	q.respond(w, http.StatusCreated, comment, err)
}

func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	var body commentBody
	if err := decode(r, &body); err != nil {
		q.fail(w, err)
		return
	}
	comment, err := hooks.NewComments(q.deps, chi.URLParam(r, "postID")).
		Update(r.Context(), chi.URLParam(r, "commentID"), body.Content)
	q.respond(w, http.StatusOK, comment, err)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	err := hooks.NewComments(q.deps, chi.URLParam(r, "postID")).Delete(r.Context(), chi.URLParam(r, "commentID"))
	q.respond(w, http.StatusOK, nil, err)
}

// === Votes and attendance ===

type voteView struct {
	Vote int `json:"vote"`
}

func (s *Server) getPostVote(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	votes := hooks.NewPostVotes(q.deps, chi.URLParam(r, "postID"))
	defer votes.Close()
	err := votes.Load(r.Context())
	q.respond(w, http.StatusOK, voteView{Vote: votes.Current()}, err)
}

func (s *Server) votePost(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	var body struct {
		Direction int `json:"direction"`
	}
	if err := decode(r, &body); err != nil {
		q.fail(w, err)
		return
	}
	votes := hooks.NewPostVotes(q.deps, chi.URLParam(r, "postID"))
	defer votes.Close()
	err := votes.Vote(r.Context(), body.Direction)
	q.respond(w, http.StatusOK, voteView{Vote: votes.Current()}, err)
}

type attendanceView struct {
	Attending bool  `json:"attending"`
	Count     int64 `json:"count"`
}

// attendance загружает отметку и счётчик; toggle дополнительно переключает отметку.
func (s *Server) attendance(w http.ResponseWriter, r *http.Request, toggle bool) {
	q := s.request(r)
	ctx := r.Context()
	a := hooks.NewAttendance(q.deps, chi.URLParam(r, "postID"))
	defer a.Close()

	if err := a.Load(ctx); err != nil {
		q.fail(w, err)
		return
	}
	if toggle {
		if err := a.Toggle(ctx); err != nil {
			q.fail(w, err)
			return
		}
	}
	if err := a.Watch(ctx); err != nil {
		q.fail(w, err)
		return
	}
	q.reply(w, http.StatusOK, attendanceView{Attending: a.Attending(), Count: a.Count()})
}

func (s *Server) getAttendance(w http.ResponseWriter, r *http.Request) { s.attendance(w, r, false) }

func (s *Server) toggleAttendance(w http.ResponseWriter, r *http.Request) { s.attendance(w, r, true) }

// === Polls ===

type pollsView struct {
	Polls   []domain.Poll                 `json:"polls"`
	Results map[string]map[string]float64 `json:"results"`
}

func pollsOf(p *hooks.Polls) pollsView {
	v := pollsView{Polls: nonNil(p.Items()), Results: map[string]map[string]float64{}}
	for _, poll := range v.Polls {
		if res, ok := p.Results(poll.ID); ok {
			v.Results[poll.ID] = res
		}
	}
	return v
}

func (s *Server) listPolls(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	polls := hooks.NewPolls(q.deps, chi.URLParam(r, "postID"))
	defer polls.Close()
	err := polls.Load(r.Context())
	q.respond(w, http.StatusOK, pollsOf(polls), err)
}

func (s *Server) createPoll(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	var body struct {
		Question  string     `json:"question"`
		Options   []string   `json:"options"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := decode(r, &body); err != nil {
		q.fail(w, err)
		return
	}
	poll, err := hooks.NewPolls(q.deps, chi.URLParam(r, "postID")).Create(r.Context(), hooks.PollInput{
		Question:  body.Question,
		Options:   body.Options,
		ExpiresAt: body.ExpiresAt,
	})
	q.respond(w, http.StatusCreated, poll, err)
}

func (s *Server) addPollOption(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	var body struct {
		Text string `json:"text"`
	}
	if err := decode(r, &body); err != nil {
		q.fail(w, err)
		return
	}
	option, err := hooks.NewPolls(q.deps, chi.URLParam(r, "postID")).
		AddOption(r.Context(), chi.URLParam(r, "pollID"), body.Text)
	q.respond(w, http.StatusCreated, option, err)
}

func (s *Server) votePoll(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	var body struct {
		OptionID string `json:"option_id"`
	}
	if err := decode(r, &body); err != nil {
		q.fail(w, err)
		return
	}
	polls := hooks.NewPolls(q.deps, chi.URLParam(r, "postID"))
	defer polls.Close()
	err := polls.Vote(r.Context(), chi.URLParam(r, "pollID"), body.OptionID)
	q.respond(w, http.StatusOK, pollsOf(polls), err)
}

func (s *Server) deletePoll(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	err := hooks.NewPolls(q.deps, chi.URLParam(r, "postID")).Delete(r.Context(), chi.URLParam(r, "pollID"))
	q.respond(w, http.StatusOK, nil, err)
}

// === Races ===

func (s *Server) listRaces(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	races := hooks.NewRaces(q.deps, nil)
	defer races.Close()
	err := races.Load(r.Context())
	q.respond(w, http.StatusOK, nonNil(races.Search(r.URL.Query().Get("q"))), err)
}

func (s *Server) createRace(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	var body struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Comuna      string  `json:"comuna"`
		CanchaID    *string `json:"cancha_id"`
		Date        string  `json:"date"`
	}
	f, err := bind(r, &body)
	if err != nil {
		q.fail(w, err)
		return
	}
	in := hooks.RaceInput{
		Title:       body.Title,
		Description: body.Description,
		Comuna:      body.Comuna,
		CanchaID:    body.CanchaID,
		Images:      f.all("images"),
		Video:       f.one("video"),
	}
	if body.Date != "" {
		if in.Date, err = time.Parse(time.DateOnly, body.Date); err != nil {
			q.fail(w, badRequest(err))
			return
		}
	}
	race, err := hooks.NewRaces(q.deps, hooks.WithCompanionPosts(hooks.NewPosts(q.deps))).Create(r.Context(), in)
	q.respond(w, http.StatusCreated, race, err)
}

func (s *Server) deleteRace(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	err := hooks.NewRaces(q.deps, nil).Delete(r.Context(), chi.URLParam(r, "raceID"))
	q.respond(w, http.StatusOK, nil, err)
}

// === Canchas ===

func (s *Server) listCanchas(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	canchas := hooks.NewCanchas(q.deps)
	defer canchas.Close()
	err := canchas.Load(r.Context())
	q.respond(w, http.StatusOK, nonNil(canchas.Items()), err)
}

func (s *Server) createCancha(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	var body struct {
		Nombre         string  `json:"nombre"`
		Comuna         string  `json:"comuna"`
		Descripcion    string  `json:"descripcion"`
		Latitud        float64 `json:"latitud"`
		Longitud       float64 `json:"longitud"`
		TipoSuperficie string  `json:"tipo_superficie"`
	}
	if err := decode(r, &body); err != nil {
		q.fail(w, err)
		return
	}
	cancha, err := hooks.NewCanchas(q.deps).Create(r.Context(), hooks.CanchaInput(body))
	q.respond(w, http.StatusCreated, cancha, err)
}

func (s *Server) getCancha(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	cancha, err := hooks.NewCanchas(q.deps).Get(r.Context(), chi.URLParam(r, "canchaID"))
	q.respond(w, http.StatusOK, cancha, err)
}

// === Profile ===

type profileBody struct {
	DisplayName    *string             `json:"display_name"`
	Bio            *string             `json:"bio"`
	AvatarURL      *string             `json:"avatar_url"`
	Phone          *string             `json:"phone"`
	ContactEmail   *string             `json:"contact_email"`
	Comuna         *string             `json:"comuna"`
	RoleOwner      *bool               `json:"role_owner"`
	RoleCorral     *bool               `json:"role_corral"`
	RoleAficionado *bool               `json:"role_aficionado"`
	RoleJinete     *bool               `json:"role_jinete"`
	RolePreparador *bool               `json:"role_preparador"`
	PrimaryRole    *domain.PrimaryRole `json:"primary_role"`
}

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	profiles := hooks.NewProfiles(q.deps)
	defer profiles.Close()
	err := profiles.Load(r.Context())
	q.respond(w, http.StatusOK, nonNil(profiles.Search(r.URL.Query().Get("q"))), err)
}

func (s *Server) getPublicProfile(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	profile, err := hooks.NewProfiles(q.deps).Get(r.Context(), chi.URLParam(r, "profileID"))
	q.respond(w, http.StatusOK, profile, err)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	p := hooks.NewProfile(q.deps)
	defer p.Close()
	if err := p.Load(r.Context()); err != nil {
		q.fail(w, err)
		return
	}
	profile, ok := p.Profile()
	if !ok {
		q.reply(w, http.StatusOK, nil)
		return
	}
	q.reply(w, http.StatusOK, profile)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	var body profileBody
	if err := decode(r, &body); err != nil {
		q.fail(w, err)
		return
	}
	profile, err := hooks.NewProfile(q.deps).Update(r.Context(), hooks.ProfileUpdate(body))
	q.respond(w, http.StatusOK, profile, err)
}

func (s *Server) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	var body struct{}
	f, err := bind(r, &body)
	if err != nil {
		q.fail(w, err)
		return
	}
	file := f.one("file")
	if file == nil {
		q.fail(w, badRequest(errMissingFile))
		return
	}
	url, err := hooks.NewProfile(q.deps).UploadAvatar(r.Context(), *file)
	q.respond(w, http.StatusCreated, map[string]string{"url": url}, err)
}

// === Carousel ===

func (s *Server) listCarousel(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	c := hooks.NewCarousel(q.deps)
	defer c.Close()
	err := c.Load(r.Context())
	q.respond(w, http.StatusOK, nonNil(c.Items()), err)
}

// === Direct messages ===

func (s *Server) loadMessages(w http.ResponseWriter, r *http.Request) (*hooks.DirectMessages, request, bool) {
	q := s.request(r)
	m := hooks.NewDirectMessages(q.deps)
	if err := m.Load(r.Context()); err != nil {
		m.Close()
		q.fail(w, err)
		return nil, q, false
	}
	return m, q, true
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	m, q, ok := s.loadMessages(w, r)
	if !ok {
		return
	}
	defer m.Close()
	q.reply(w, http.StatusOK, nonNil(m.Items()))
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	m, q, ok := s.loadMessages(w, r)
	if !ok {
		return
	}
	defer m.Close()
	q.reply(w, http.StatusOK, nonNil(m.Conversations()))
}

func (s *Server) messageThread(w http.ResponseWriter, r *http.Request) {
	m, q, ok := s.loadMessages(w, r)
	if !ok {
		return
	}
	defer m.Close()
	q.reply(w, http.StatusOK, nonNil(m.Thread(chi.URLParam(r, "partnerID"))))
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	var body struct {
		ReceiverID string `json:"receiver_id"`
		Content    string `json:"content"`
	}
	if err := decode(r, &body); err != nil {
		q.fail(w, err)
		return
	}
	msg, err := hooks.NewDirectMessages(q.deps).Send(r.Context(), body.ReceiverID, body.Content)
	q.respond(w, http.StatusCreated, msg, err)
}

func (s *Server) markMessageRead(w http.ResponseWriter, r *http.Request) {
	q := s.request(r)
	msg, err := hooks.NewDirectMessages(q.deps).MarkAsRead(r.Context(), chi.URLParam(r, "messageID"))
	q.respond(w, http.StatusOK, msg, err)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
