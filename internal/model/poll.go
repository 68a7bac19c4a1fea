package model

// Poll is the voting payload attached to a poll message.
type Poll struct {
	ID       string `json:"id"`
	Question string `json:"question"`

	// Options is the ordered list of choices. Votes refer to options
	// by their index in this slice.
	Options []string `json:"options"`

	// Votes maps a user ID to the option indexes that user selected.
	Votes map[string][]int `json:"votes"`

	// MultipleChoice allows a voter to select more than one option.
	MultipleChoice bool `json:"multiple_choice"`
}

// VoteCounts derives the number of votes per option from Votes.
// Indexes outside the option range are ignored.
func (p Poll) VoteCounts() []int {
	counts := make([]int, len(p.Options))
	for _, selected := range p.Votes {
		for _, idx := range selected {
			if idx >= 0 && idx < len(counts) {
				counts[idx]++
			}
		}
	}
	return counts
}

// TotalVoters returns the number of users that have cast a vote.
func (p Poll) TotalVoters() int {
	total := 0
	for _, selected := range p.Votes {
		if len(selected) > 0 {
			total++
		}
	}
	return total
}

// WithVote returns a copy of the poll where userID's selection is
// replaced by options. A nil or empty options slice removes the vote.
func (p Poll) WithVote(userID string, options []int) Poll {
	votes := make(map[string][]int, len(p.Votes)+1)
	for user, selected := range p.Votes {
		votes[user] = selected
	}
	if len(options) == 0 {
		delete(votes, userID)
	} else {
		votes[userID] = append([]int(nil), options...)
	}
	p.Votes = votes
	return p
}

// Clone returns a deep copy of the poll.
func (p Poll) Clone() Poll {
	p.Options = append([]string(nil), p.Options...)
	votes := make(map[string][]int, len(p.Votes))
	for user, selected := range p.Votes {
		votes[user] = append([]int(nil), selected...)
	}
	p.Votes = votes
	return p
}
