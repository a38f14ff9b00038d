// Package seed наполняет хранилище демонстрационными данными.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UkralStul/carreras-sync/internal/domain"
	"github.com/UkralStul/carreras-sync/internal/hooks"
	"github.com/UkralStul/carreras-sync/internal/identity"
	"github.com/UkralStul/carreras-sync/internal/notify"
	"github.com/UkralStul/carreras-sync/internal/storage"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

var comunas = []string{"Pirque", "Melipilla", "Curicó", "Los Ángeles", "Osorno", "Rancagua", "Talca"}

var superficies = []string{"arena", "pasto", "tierra"}

// Result - что было создано.
type Result struct {
	Profiles []string
	Canchas  int
	Races    int
	Posts    int
	Comments int
	Polls    int
	Slides   int
}

// Fill создает n пользователей и данные от их имени. Все записи идут через хуки,
// поэтому счётчики и посты-компаньоны появляются так же, как в приложении.
func Fill(ctx context.Context, store storage.Store, n int, log *slog.Logger) (Result, error) {
	if n <= 0 {
		return Result{}, nil
	}
	if log == nil {
		log = slog.Default()
	}
	f := gofakeit.New(0)
	res := Result{}

	// 1. Профили
	for i := 0; i < n; i++ {
		name := f.Name()
		bio := f.Sentence(10)
		comuna := f.RandomString(comunas)
		p := &domain.Profile{
			Base:           domain.Base{ID: uuid.NewString()},
			DisplayName:    &name,
			Bio:            &bio,
			Comuna:         &comuna,
			RoleAficionado: true,
			RoleJinete:     f.Bool(),
		}
		if err := store.Insert(ctx, p); err != nil {
			return res, fmt.Errorf("seed: failed to create profile: %w", err)
		}
		res.Profiles = append(res.Profiles, p.ID)
	}

	deps := func(userID string) hooks.Deps {
		return hooks.Deps{
			Store:    store,
			Identity: identity.NewSession(userID),
			Notifier: &notify.Recorder{},
			Logger:   log,
		}
	}
	author := func(i int) string { return res.Profiles[i%len(res.Profiles)] }

	// 2. Площадки
	canchas := hooks.NewCanchas(deps(author(0)))
	var canchaIDs []string
	for i := 0; i < n; i++ {
		c, err := canchas.Create(ctx, hooks.CanchaInput{
			Nombre:         "Cancha " + f.LastName(),
			Comuna:         f.RandomString(comunas),
			Descripcion:    f.Sentence(8),
			Latitud:        f.Float64Range(-41, -33),
			Longitud:       f.Float64Range(-73, -70),
			TipoSuperficie: f.RandomString(superficies),
		})
		if err != nil {
			return res, fmt.Errorf("seed: failed to create cancha: %w", err)
		}
		canchaIDs = append(canchaIDs, c.ID)
		res.Canchas++
	}

	// 3. События с постами-компаньонами
	for i := 0; i < n; i++ {
		d := deps(author(i))
		races := hooks.NewRaces(d, hooks.WithCompanionPosts(hooks.NewPosts(d)))
		canchaID := canchaIDs[i%len(canchaIDs)]
		_, err := races.Create(ctx, hooks.RaceInput{
			Title:       "Carrera a la chilena en " + f.RandomString(comunas),
			Description: f.Paragraph(1, 3, 12, " "),
			Comuna:      f.RandomString(comunas),
			CanchaID:    &canchaID,
			Date:        f.DateRange(time.Now(), time.Now().AddDate(0, 2, 0)),
		})
		if err != nil {
			return res, fmt.Errorf("seed: failed to create race: %w", err)
		}
		res.Races++
		res.Posts++
	}

	// 4. Обычные посты и комментарии к ним
	categories := []domain.Category{domain.CategoryGeneral, domain.CategoryPastRace, domain.CategoryChallenges, domain.CategoryMarketplace}
	var firstPost string
	for i := 0; i < n; i++ {
		post, err := hooks.NewPosts(deps(author(i))).Create(ctx, hooks.PostInput{
			Title:    f.Sentence(5),
			Content:  f.Paragraph(2, 3, 10, "\n\n"),
			Category: categories[i%len(categories)],
		})
		if err != nil {
			return res, fmt.Errorf("seed: failed to create post: %w", err)
		}
		res.Posts++
		if firstPost == "" {
			firstPost = post.ID
		}

		for j := 0; j < 1+i%3; j++ {
			comments := hooks.NewComments(deps(author(i+j+1)), post.ID)
			if _, err := comments.Create(ctx, hooks.CommentInput{Content: f.Sentence(12)}); err != nil {
				return res, fmt.Errorf("seed: failed to create comment: %w", err)
			}
			res.Comments++
		}
	}

	// 5. Опрос на первом посте
	polls := hooks.NewPolls(deps(author(0)), firstPost)
	poll, err := polls.Create(ctx, hooks.PollInput{
		Question: "¿Quién gana la próxima carrera?",
		Options:  []string{f.FirstName(), f.FirstName(), "Empate"},
	})
	if err != nil {
		return res, fmt.Errorf("seed: failed to create poll: %w", err)
	}
	res.Polls++
	for i := range res.Profiles {
		voter := hooks.NewPolls(deps(author(i)), firstPost)
		option := poll.Options[i%len(poll.Options)]
		if err := voter.Vote(ctx, poll.ID, option.ID); err != nil {
			return res, fmt.Errorf("seed: failed to vote: %w", err)
		}
	}

	// 6. Слайды карусели: у них нет хука записи
	for i := 0; i < 3; i++ {
		desc := f.Sentence(8)
		button := "Ver más"
		slide := &domain.CarouselSlide{
			Title:       f.Sentence(4),
			Description: &desc,
			ImageURL:    fmt.Sprintf("https://picsum.photos/seed/%s/1200/400", f.LetterN(8)),
			ButtonText:  &button,
			IsActive:    i < 2,
			OrderIndex:  i,
		}
		if err := store.Insert(ctx, slide); err != nil {
			return res, fmt.Errorf("seed: failed to create slide: %w", err)
		}
		res.Slides++
	}

	log.InfoContext(ctx, "mock data filled",
		"profiles", len(res.Profiles), "canchas", res.Canchas, "races", res.Races,
		"posts", res.Posts, "comments", res.Comments, "polls", res.Polls, "slides", res.Slides)
	return res, nil
}
