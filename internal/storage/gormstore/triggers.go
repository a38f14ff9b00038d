package gormstore

import (
	"github.com/UkralStul/carreras-sync/internal/domain"
	"gorm.io/gorm"
)

// trigger пересчитывает агрегаты, которые поддерживает хранилище, в той же транзакции,
// что и мутация. Возвращает перечитанные строки, которые он изменил.
type trigger func(tx *gorm.DB, rows []domain.Record) ([]domain.Record, error)

var triggers = map[string]trigger{
	"post_votes": recountPostVotes,
	"poll_votes": recountPollVotes,
	"comments":   recountComments,
}

func runTriggers(tx *gorm.DB, rows []domain.Record) ([]domain.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	t, ok := triggers[rows[0].TableName()]
	if !ok {
		return nil, nil
	}
	return t(tx, rows)
}

// scopeValues собирает уникальные значения колонки из Scope строк.
func scopeValues(rows []domain.Record, column string) []string {
	seen := make(map[string]struct{}, len(rows))
	var out []string
	for _, r := range rows {
		v := r.Scope()[column]
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// posts.votes = SUM(post_votes.vote_type)
func recountPostVotes(tx *gorm.DB, rows []domain.Record) ([]domain.Record, error) {
	postIDs := scopeValues(rows, "post_id")
	if len(postIDs) == 0 {
		return nil, nil
	}
	err := tx.Model(&domain.Post{}).Where("id IN ?", postIDs).
		UpdateColumn("votes", gorm.Expr("(SELECT COALESCE(SUM(vote_type), 0) FROM post_votes WHERE post_votes.post_id = posts.id)")).Error
	if err != nil {
		return nil, err
	}
	return reread[domain.Post](tx, postIDs)
}

// posts.comments_count = COUNT(comments)
func recountComments(tx *gorm.DB, rows []domain.Record) ([]domain.Record, error) {
	postIDs := scopeValues(rows, "post_id")
	if len(postIDs) == 0 {
		return nil, nil
	}
	err := tx.Model(&domain.Post{}).Where("id IN ?", postIDs).
		UpdateColumn("comments_count", gorm.Expr("(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id)")).Error
	if err != nil {
		return nil, err
	}
	return reread[domain.Post](tx, postIDs)
}

// poll_options.votes_count = COUNT(poll_votes) по всем вариантам затронутых опросов.
// При смене голоса меняются два варианта сразу.
func recountPollVotes(tx *gorm.DB, rows []domain.Record) ([]domain.Record, error) {
	pollIDs := scopeValues(rows, "poll_id")
	if len(pollIDs) == 0 {
		return nil, nil
	}
	err := tx.Model(&domain.PollOption{}).Where("poll_id IN ?", pollIDs).
		UpdateColumn("votes_count", gorm.Expr("(SELECT COUNT(*) FROM poll_votes WHERE poll_votes.option_id = poll_options.id)")).Error
	if err != nil {
		return nil, err
	}
	var options []domain.PollOption
	if err := tx.Where("poll_id IN ?", pollIDs).Find(&options).Error; err != nil {
		return nil, err
	}
	return records(&options), nil
}

func reread[T any](tx *gorm.DB, ids []string) ([]domain.Record, error) {
	var rows []T
	if err := tx.Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return records(&rows), nil
}
