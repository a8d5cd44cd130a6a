package ledger

import "fmt"

const (
	IssueStatusPending  = "pending"
	IssueStatusPartial  = "partial"
	IssueStatusResolved = "resolved"
)

const (
	ResolutionReplaced  = "replaced"
	ResolutionRefunded  = "refunded"
	ResolutionCredited  = "credited"
	ResolutionCancelled = "cancelled"
)

// Issue is a reported defect blocking forward progress until resolved.
// Resolutions are appended to History; a replacement that itself arrived
// defective spawns a child issue chained via ParentIssueID.
type Issue struct {
	ID                  string       `json:"id"`
	LineIndex           *int         `json:"lineIndex,omitempty"`
	Type                string       `json:"type"`
	Item                string       `json:"item,omitempty"`
	Quantity            int          `json:"quantity"`
	FaultSource         string       `json:"faultSource,omitempty"`
	ResponsiblePersonID string       `json:"responsiblePersonId,omitempty"`
	PhotoURL            string       `json:"photoUrl,omitempty"`
	Note                string       `json:"note,omitempty"`
	Status              string       `json:"status"`
	ParentIssueID       string       `json:"parentIssueId,omitempty"`
	ReplacementOrderID  string       `json:"replacementOrderId,omitempty"`
	History             []Resolution `json:"history"`
	CreatedAt           string       `json:"createdAt"`
	ResolvedAt          string       `json:"resolvedAt,omitempty"`
}

// Resolution is one resolution attempt on an issue.
type Resolution struct {
	Date         string `json:"date"`
	Resolution   string `json:"resolution"`
	ResolvedQty  int    `json:"resolvedQty"`
	Note         string `json:"note,omitempty"`
	ChildIssueID string `json:"childIssueId,omitempty"`
}

var resolutionKinds = map[string]bool{
	ResolutionReplaced:  true,
	ResolutionRefunded:  true,
	ResolutionCredited:  true,
	ResolutionCancelled: true,
}

func ValidResolution(kind string) bool { return resolutionKinds[kind] }

// ResolveRequest carries one resolution attempt. NewIssueQty > 0 (with a
// type) means the replacement itself arrived defective and chains a child
// issue.
type ResolveRequest struct {
	Resolution   string
	ResolvedQty  int
	Note         string
	NewIssueQty  int
	NewIssueType string
	NewIssueNote string
	Date         string
	ChildIssueID string
}

// Resolve appends the resolution to the issue history and derives the issue
// status. It returns the chained child issue when the request reports a new
// defect, or nil. Callers own persisting both.
func Resolve(issue *Issue, req ResolveRequest) (*Issue, error) {
	if !ValidResolution(req.Resolution) {
		return nil, fmt.Errorf("unknown resolution kind %q", req.Resolution)
	}

	res := Resolution{
		Date:        req.Date,
		Resolution:  req.Resolution,
		ResolvedQty: req.ResolvedQty,
		Note:        req.Note,
	}

	var child *Issue
	if req.NewIssueQty > 0 && req.NewIssueType != "" {
		child = &Issue{
			ID:            req.ChildIssueID,
			LineIndex:     issue.LineIndex,
			Type:          req.NewIssueType,
			Quantity:      req.NewIssueQty,
			Note:          req.NewIssueNote,
			Status:        IssueStatusPending,
			ParentIssueID: issue.ID,
			History:       []Resolution{},
			CreatedAt:     req.Date,
		}
		res.ChildIssueID = child.ID

		// The chained quantity is still unresolved against the original
		// defect.
		if req.ResolvedQty-req.NewIssueQty >= issue.Quantity {
			issue.Status = IssueStatusResolved
		} else {
			issue.Status = IssueStatusPartial
		}
	} else {
		if req.ResolvedQty >= issue.Quantity {
			issue.Status = IssueStatusResolved
		} else {
			issue.Status = IssueStatusPartial
		}
	}
	if issue.Status == IssueStatusResolved {
		issue.ResolvedAt = req.Date
	}

	issue.History = append(issue.History, res)
	return child, nil
}

// EffectiveReceivedDelta is the quantity a resolution adds back onto the
// order line. Replacements and credits restock the line, refunds and
// cancellations do not.
func EffectiveReceivedDelta(req ResolveRequest) int {
	if req.Resolution == ResolutionReplaced || req.Resolution == ResolutionCredited {
		return req.ResolvedQty - req.NewIssueQty
	}
	return 0
}

// PendingCount counts open issues; both trackers gate forward transitions
// on this being zero.
func PendingCount(issues []Issue) int {
	n := 0
	for _, iss := range issues {
		if iss.Status == IssueStatusPending {
			n++
		}
	}
	return n
}

func FindIssue(issues []Issue, id string) *Issue {
	for i := range issues {
		if issues[i].ID == id {
			return &issues[i]
		}
	}
	return nil
}
