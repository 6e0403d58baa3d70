package sms

// Lane is the traffic classification of an outbound message. Each lane has its own
// compliance rules and its own sending identity at the provider.
type Lane string

const (
	LaneOtp           Lane = "otp"
	LaneTransactional Lane = "transactional"
	LaneMarketing     Lane = "marketing"
)

var Lanes = []Lane{LaneOtp, LaneTransactional, LaneMarketing}

func ParseLane(s string) (Lane, bool) {
	for _, l := range Lanes {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// allowsMedia reports whether a media attachment may be sent on the lane.
func (l Lane) allowsMedia() bool {
	return l != LaneOtp
}
