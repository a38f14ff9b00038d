// Package events - шина событий между открытыми контекстами клиента (вкладками).
// Доставка best-effort, не более одного раза, без повторной выдачи опоздавшим.
package events

import (
	"errors"
	"fmt"
)

// Type - вид события. Набор закрыт.
type Type string

const (
	TypeRaceDeleted Type = "race-deleted"
	TypeRaceCreated Type = "race-created"
)

// Payload - данные события.
type Payload struct {
	RaceID string `json:"raceId"`
}

// Event - сообщение шины: {"type":"race-deleted","payload":{"raceId":"..."}}.
type Event struct {
	Type    Type    `json:"type"`
	Payload Payload `json:"payload"`
}

// RaceDeleted сообщает другим контекстам, что событие календаря удалено.
func RaceDeleted(raceID string) Event {
	return Event{Type: TypeRaceDeleted, Payload: Payload{RaceID: raceID}}
}

// RaceCreated сообщает другим контекстам о новом событии календаря.
func RaceCreated(raceID string) Event {
	return Event{Type: TypeRaceCreated, Payload: Payload{RaceID: raceID}}
}

// ErrInvalidEvent - событие вне закрытого набора или без обязательных данных.
var ErrInvalidEvent = errors.New("invalid app event")

func (e Event) Validate() error {
	switch e.Type {
	case TypeRaceDeleted, TypeRaceCreated:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if e.Payload.RaceID == "" {
		return fmt.Errorf("%w: %s without raceId", ErrInvalidEvent, e.Type)
	}
	return nil
}

// envelope - то, что реально уходит в транспорт: событие плюс источник и метка времени.
type envelope struct {
	Event
	Source string `json:"source"`
	TS     int64  `json:"ts"`
}
