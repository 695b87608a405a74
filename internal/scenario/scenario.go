// Package scenario maps a scam-checker quiz submission to a scam scenario
// category. The rules overlap on purpose (a buyer contacted over WhatsApp
// matches both the purchase and the messaging rule), so classification is
// an ordered list evaluated first-match-wins to keep the tie-break visible
// and testable.
package scenario

// Submission holds the categorical answers from the scam-checker quiz.
type Submission struct {
	UserRole            string `json:"userRole"`
	CommunicationMedium string `json:"communicationMedium"`
	PaymentMethod       string `json:"paymentMethod"`
	SocialEngineering   string `json:"socialEngineering"`
}

// Category identifiers double as KV counter suffixes (scenario_{category}).
const (
	OnlinePurchase  = "online-purchase"
	OnlineSelling   = "online-selling"
	Investment      = "investment"
	Employment      = "employment"
	PhoneSMS        = "phone-sms"
	SocialMessaging = "social-messaging"
	Romance         = "romance"
	Other           = "other"
)

type rule struct {
	match func(Submission) bool
	label string
}

// messagingMediums are chat/social channels, as opposed to calls and SMS.
var messagingMediums = map[string]bool{
	"whatsapp":  true,
	"telegram":  true,
	"messenger": true,
	"facebook":  true,
	"instagram": true,
	"wechat":    true,
}

// rules in priority order. Role-based rules come first: what the victim was
// doing says more about the scam than which channel carried it.
var rules = []rule{
	{func(s Submission) bool { return s.UserRole == "buyer" }, OnlinePurchase},
	{func(s Submission) bool { return s.UserRole == "seller" }, OnlineSelling},
	{func(s Submission) bool { return s.UserRole == "investor" || s.SocialEngineering == "too-good" }, Investment},
	{func(s Submission) bool { return s.UserRole == "partimer" || s.UserRole == "worker" }, Employment},
	{func(s Submission) bool {
		return s.SocialEngineering == "authority" || s.SocialEngineering == "fear" || s.CommunicationMedium == "sms"
	}, PhoneSMS},
	{func(s Submission) bool { return messagingMediums[s.CommunicationMedium] }, SocialMessaging},
	{func(s Submission) bool { return s.SocialEngineering == "sympathy" }, Romance},
}

// Classify returns the first matching category, or Other.
func Classify(s Submission) string {
	for _, r := range rules {
		if r.match(s) {
			return r.label
		}
	}
	return Other
}

// labels are the human-readable names shown in the public stats endpoint.
var labels = map[string]string{
	OnlinePurchase:  "Online purchase scams",
	OnlineSelling:   "Online selling scams",
	Investment:      "Investment scams",
	Employment:      "Job & employment scams",
	PhoneSMS:        "Phone & SMS scams",
	SocialMessaging: "Social & messaging scams",
	Romance:         "Romance scams",
	Other:           "Other scams",
}

// Categories lists every known category in rule priority order.
func Categories() []string {
	return []string{
		OnlinePurchase, OnlineSelling, Investment, Employment,
		PhoneSMS, SocialMessaging, Romance, Other,
	}
}

// Label returns the display name for a category, falling back to the
// category identifier itself.
func Label(category string) string {
	if l, ok := labels[category]; ok {
		return l
	}
	return category
}
