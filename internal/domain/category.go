package domain

import (
	"fmt"
	"strings"
)

// Category - категория поста форума.
type Category string

const (
	CategoryGeneral      Category = "Temas generales"
	CategoryUpcomingRace Category = "Próximas carreras"
	CategoryPastRace     Category = "Carreras pasadas"
	CategoryChallenges   Category = "Desafíos"
	CategoryMarketplace  Category = "Compra venta"
)

// Categories возвращает категории в порядке отображения.
func Categories() []Category {
	return []Category{
		CategoryGeneral, CategoryUpcomingRace, CategoryPastRace, CategoryChallenges, CategoryMarketplace,
	}
}

var foldAccents = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n")

var categoryAliases = map[string]Category{
	"temas generales":   CategoryGeneral,
	"general":           CategoryGeneral,
	"proximas carreras": CategoryUpcomingRace,
	"carreras pasadas":  CategoryPastRace,
	"desafios":          CategoryChallenges,
	"compra venta":      CategoryMarketplace,
	"compraventa":       CategoryMarketplace,
}

// ParseCategory нормализует регистр и диакритику.
// "proximas Carreras" и "Próximas Carreras" дают CategoryUpcomingRace.
func ParseCategory(raw string) (Category, error) {
	key := foldAccents.Replace(strings.ToLower(strings.TrimSpace(raw)))
	if c, ok := categoryAliases[key]; ok {
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", raw)
}

// PrimaryRole - основная роль пользователя в сообществе.
type PrimaryRole string

const (
	RoleOwner      PrimaryRole = "propietario"
	RoleCorral     PrimaryRole = "corral"
	RoleAficionado PrimaryRole = "aficionado"
	RoleJinete     PrimaryRole = "jinete"
	RolePreparador PrimaryRole = "preparador"
)

// Valid сообщает, является ли роль одной из известных.
func (r PrimaryRole) Valid() bool {
	switch r {
	case RoleOwner, RoleCorral, RoleAficionado, RoleJinete, RolePreparador:
		return true
	}
	return false
}
