package models

import "github.com/google/uuid"

// GroupReactions folds reaction rows into per-emoji groups. Groups appear in
// the order their emoji was first used, so rows must be sorted by id.
func GroupReactions(rows []Reaction) []ReactionGroup {
	groups := make([]ReactionGroup, 0)
	index := make(map[string]int)
	for _, r := range rows {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji, UserIDs: make([]uuid.UUID, 0, 1)})
		}
		groups[i].Count++
		groups[i].UserIDs = append(groups[i].UserIDs, r.UserID)
	}
	return groups
}

// HasReacted reports whether user is among the reactors of emoji.
func HasReacted(groups []ReactionGroup, emoji string, user uuid.UUID) bool {
	for _, g := range groups {
		if g.Emoji != emoji {
			continue
		}
		for _, u := range g.UserIDs {
			if u == user {
				return true
			}
		}
	}
	return false
}
