// internal/models/character.go
package models

// Character is one entry of the project's character roster. Characters are
// independent of the node graph and are not referenced from nodes.
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	AvatarSrc   string `json:"avatarSrc"`
}

// Clone returns a copy of the character.
func (c *Character) Clone() *Character {
	if c == nil {
		return nil
	}
	cc := *c
	return &cc
}
