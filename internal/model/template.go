package model

import "time"

// Template is a reusable task blueprint.
type Template struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Description string
	Category    *Category  `gorm:"type:varchar(32)"`
	Tags        []Tag      `gorm:"many2many:template_tags"`
	Schedules   []Schedule `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasCategory reports whether scheduled occurrences can be placed somewhere.
func (t Template) HasCategory() bool {
	return t.Category != nil && t.Category.Valid()
}

func (t Template) TagNames() []string {
	names := make([]string, 0, len(t.Tags))
	for _, tag := range t.Tags {
		names = append(names, tag.Name)
	}
	return names
}
