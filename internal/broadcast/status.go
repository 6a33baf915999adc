package broadcast

// activityStatus lists the activity types that move an email's status.
// Opens, clicks and delays are recorded but leave the status alone.
var activityStatus = map[ActivityType]EmailStatus{
	ActivityBounced:      EmailBounced,
	ActivityComplained:   EmailComplained,
	ActivityDelivered:    EmailDelivered,
	ActivitySent:         EmailSent,
	ActivityUnsubscribed: EmailUnsubscribed,
}

// statusPriority ranks statuses; the highest rank present in the log wins.
var statusPriority = map[EmailStatus]int{
	EmailQueued:       0,
	EmailSent:         1,
	EmailDelivered:    2,
	EmailBounced:      3,
	EmailComplained:   4,
	EmailUnsubscribed: 5,
}

// DeriveStatus computes an email's status from its activity log. Priority
// decides, not order of arrival, so a late "delivered" never hides an earlier
// "bounced". It returns false when no entry maps to a status.
func DeriveStatus(activity []Activity) (EmailStatus, bool) {
	var (
		best EmailStatus
		rank = -1
	)
	for _, a := range activity {
		status, ok := activityStatus[a.Type]
		if !ok {
			continue
		}
		if p := statusPriority[status]; p > rank {
			rank = p
			best = status
		}
	}
	return best, rank >= 0
}

// ApplyActivity appends a to e's log and recomputes the status. A log with no
// status-bearing entry keeps the current status.
func (e *Email) ApplyActivity(a Activity) {
	e.Activity = append(e.Activity, a)
	if status, ok := DeriveStatus(e.Activity); ok {
		e.Status = status
	}
}
