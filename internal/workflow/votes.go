package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/pitabwire/tripflow/model"
)

var voteTitles = map[string]string{
	model.VoteShortlist:      "Shortlist resorts",
	model.VoteFinalResort:    "Pick the final resort",
	model.VoteLodging:        "Pick lodging",
	model.VoteBudgetApproval: "Approve the budget",
}

func isVoteType(t string) bool {
	_, ok := voteTitles[t]
	return ok
}

// deriveVotes seeds the fixed vote types and fills empty option lists from
// the current candidates. Non-empty option lists are never regenerated.
func deriveVotes(decision model.DecisionPackage, prev []model.Vote) []model.Vote {
	prevByType := make(map[string]model.Vote, len(prev))
	for _, v := range prev {
		prevByType[v.Type] = v
	}

	out := make([]model.Vote, 0, len(model.VoteTypes))
	for _, typ := range model.VoteTypes {
		v, ok := prevByType[typ]
		if !ok {
			v = newVote(typ)
		}
		v.Options = append([]string(nil), v.Options...)
		v.Ballots = append([]model.Ballot(nil), v.Ballots...)
		if len(v.Options) == 0 {
			v.Options = seedOptions(typ, decision)
		}
		out = append(out, v)
	}
	return out
}

func newVote(typ string) model.Vote {
	return model.Vote{
		Type:   typ,
		Title:  voteTitles[typ],
		Status: model.VoteStatusOpen,
	}
}

func seedOptions(typ string, decision model.DecisionPackage) []string {
	var names []string
	switch typ {
	case model.VoteBudgetApproval:
		return []string{model.OptionApprove, model.OptionRevise}
	case model.VoteLodging:
		for _, it := range decision.Itineraries {
			if top, ok := it.TopLodging(); ok {
				names = append(names, top.Name)
			}
		}
	default:
		for _, it := range decision.Itineraries {
			names = append(names, it.ResortName)
		}
	}
	return uniqueNonEmpty(names)
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// findVote returns a pointer into votes for the given type.
func findVote(votes []model.Vote, typ string) *model.Vote {
	for i := range votes {
		if votes[i].Type == typ {
			return &votes[i]
		}
	}
	return nil
}

// resolveChoice maps choice onto an existing option ignoring case. Unknown
// choices are added as write-in options.
func resolveChoice(v *model.Vote, choice string) string {
	choice = strings.TrimSpace(choice)
	for _, opt := range v.Options {
		if strings.EqualFold(opt, choice) {
			return opt
		}
	}
	v.Options = append(v.Options, choice)
	return choice
}

// pluralityWinner returns the choice with the most ballots. Ties go to the
// choice whose first ballot was cast earliest in ballot order.
func pluralityWinner(ballots []model.Ballot) string {
	counts := make(map[string]int)
	var order []string
	for _, b := range ballots {
		if _, ok := counts[b.Choice]; !ok {
			order = append(order, b.Choice)
		}
		counts[b.Choice]++
	}

	winner, best := "", 0
	for _, choice := range order {
		if counts[choice] > best {
			winner, best = choice, counts[choice]
		}
	}
	return winner
}

// castVote replaces the voter's ballot and recomputes the winner. Closed
// votes reject ballots. A budget vote stays approved only while Approve
// leads.
func castVote(v *model.Vote, voter, choice, rationale string, now time.Time) error {
	if v.ClosedAt != nil || v.Status == model.VoteStatusClosed {
		return fmt.Errorf("vote %s is closed", v.Type)
	}

	resolved := resolveChoice(v, choice)
	ballots := v.Ballots[:0:0]
	for _, b := range v.Ballots {
		if b.Voter != voter {
			ballots = append(ballots, b)
		}
	}
	v.Ballots = append(ballots, model.Ballot{
		Voter:     voter,
		Choice:    resolved,
		Rationale: rationale,
		CastAt:    now,
	})

	v.Winner = pluralityWinner(v.Ballots)
	if v.Type == model.VoteBudgetApproval {
		v.Status = model.VoteStatusOpen
		if strings.EqualFold(v.Winner, model.OptionApprove) {
			v.Status = model.VoteStatusApproved
		}
	}
	return nil
}

// closeVote ends a vote. The winner defaults to the current plurality.
func closeVote(v *model.Vote, winner string, now time.Time) {
	if winner != "" {
		v.Winner = resolveChoice(v, winner)
	} else if v.Winner == "" {
		v.Winner = pluralityWinner(v.Ballots)
	}

	v.Status = model.VoteStatusClosed
	if v.Type == model.VoteBudgetApproval && strings.EqualFold(v.Winner, model.OptionApprove) {
		v.Status = model.VoteStatusApproved
	}
	closedAt := now
	v.ClosedAt = &closedAt
}

// voteLogType is approval for the budget vote, vote otherwise.
func voteLogType(voteType string) string {
	if voteType == model.VoteBudgetApproval {
		return model.LogApproval
	}
	return model.LogVote
}

// budgetApproved reports whether the budget vote has been approved.
func budgetApproved(votes []model.Vote) bool {
	for _, v := range votes {
		if v.Type == model.VoteBudgetApproval {
			return v.Status == model.VoteStatusApproved
		}
	}
	return false
}
