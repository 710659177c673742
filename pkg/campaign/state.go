package campaign

import "github.com/jordanlanch/leadflow/pkg/models"

// rank orders the forward delivery chain
var rank = map[models.SendStatus]int{
	models.SendQueued:    0,
	models.SendSending:   1,
	models.SendSent:      2,
	models.SendDelivered: 3,
	models.SendOpened:    4,
	models.SendClicked:   5,
}

// branches lists the states each terminal outcome can be entered from
var branches = map[models.SendStatus]map[models.SendStatus]bool{
	models.SendFailed: {
		models.SendQueued: true, models.SendSending: true, models.SendSent: true,
	},
	models.SendBounced: {
		models.SendSending: true, models.SendSent: true, models.SendDelivered: true,
	},
	models.SendComplained: {
		models.SendSending: true, models.SendSent: true, models.SendDelivered: true,
		models.SendOpened: true, models.SendClicked: true,
	},
}

// timestampColumns maps a status to its first-reached timestamp column
var timestampColumns = map[models.SendStatus]string{
	models.SendSent:      "sent_at",
	models.SendDelivered: "delivered_at",
	models.SendOpened:    "opened_at",
	models.SendClicked:   "clicked_at",
	models.SendBounced:   "bounced_at",
}

// CanTransition reports whether a send in status from may move to to.
// Forward states only advance; failed, bounced and complained are
// terminal and reachable from the states listed in branches.
func CanTransition(from, to models.SendStatus) bool {
	if from == to {
		return false
	}
	if allowed, ok := branches[to]; ok {
		return allowed[from]
	}
	fromRank, fromForward := rank[from]
	toRank, toForward := rank[to]
	return fromForward && toForward && toRank > fromRank
}

// impliedReached reports whether a send in status from has already passed
// the forward state to, e.g. an open reported after the click
func impliedReached(from, to models.SendStatus) bool {
	fromRank, fromForward := rank[from]
	toRank, toForward := rank[to]
	return fromForward && toForward && toRank < fromRank
}

// IsValidSendStatus checks a send status value
func IsValidSendStatus(s models.SendStatus) bool {
	if _, ok := rank[s]; ok {
		return true
	}
	_, ok := branches[s]
	return ok
}

func hasTimestamp(send *models.EmailSend, status models.SendStatus) bool {
	switch status {
	case models.SendSent:
		return send.SentAt != nil
	case models.SendDelivered:
		return send.DeliveredAt != nil
	case models.SendOpened:
		return send.OpenedAt != nil
	case models.SendClicked:
		return send.ClickedAt != nil
	case models.SendBounced:
		return send.BouncedAt != nil
	}
	return false
}
