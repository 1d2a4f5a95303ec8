package scenario

import (
	"fmt"

	"github.com/zulandar/synapse/internal/feed"
)

// ResolutionPrefix opens the final system step of every script. Mirroring
// to the customer channel swaps it for a customer-facing prefix.
const ResolutionPrefix = "✅ Resolution: "

// Tool names a simulated agent tool. Tools never run anything; each one
// returns a fixed report.
type Tool string

const (
	CheckTraffic              Tool = "check_traffic"
	CalculateAlternativeRoute Tool = "calculate_alternative_route"
	GetMerchantStatus         Tool = "get_merchant_status"
	NotifyCustomer            Tool = "notify_customer"
	ContactRecipient          Tool = "contact_recipient"
	FindNearbyLocker          Tool = "find_nearby_locker"
	InitiateMediationFlow     Tool = "initiate_mediation_flow"
	CollectEvidence           Tool = "collect_evidence"
)

// Output returns the canned report for the tool.
func (t Tool) Output() string {
	switch t {
	case CheckTraffic:
		return "🚦 Traffic Analysis: Heavy congestion detected on main route. Alternative route available with 15-minute delay."
	case CalculateAlternativeRoute:
		return "🗺️ Route Calculation: New route calculated, +12 minutes but avoids accident zone."
	case GetMerchantStatus:
		return "🏪 Merchant Status: Restaurant currently has 40-minute prep time due to high order volume."
	case NotifyCustomer:
		return "📢 Customer Notification: Proactive alert sent with compensation voucher."
	case ContactRecipient:
		return "📱 Contact Attempt: Recipient not answering phone. Voicemail left."
	case FindNearbyLocker:
		return "📦 Locker Search: Secure parcel locker found 0.3km away at Metro Station."
	case InitiateMediationFlow:
		return "⚖️ Mediation Started: Real-time resolution interface activated for both parties."
	case CollectEvidence:
		return "📸 Evidence Collection: Photos and questionnaire responses gathered from both parties."
	default:
		return fmt.Sprintf("Tool %s returned no output.", string(t))
	}
}

// Step is one entry of a resolution script. Tool is set on action steps.
type Step struct {
	Kind    feed.Kind `json:"kind"`
	Content string    `json:"content"`
	Tool    Tool      `json:"tool,omitempty"`
}

func thought(content string) Step { return Step{Kind: feed.KindThought, Content: content} }

func action(t Tool) Step { return Step{Kind: feed.KindAction, Content: t.Output(), Tool: t} }

func resolution(summary string) Step {
	return Step{Kind: feed.KindSystem, Content: ResolutionPrefix + summary}
}

var (
	trafficScript = []Step{
		thought("🤔 Analyzing traffic disruption scenario..."),
		action(CheckTraffic),
		action(CalculateAlternativeRoute),
		resolution("Customer and driver notified of optimized route. ETA updated automatically."),
	}
	merchantScript = []Step{
		thought("🤔 Evaluating merchant delay situation..."),
		action(GetMerchantStatus),
		action(NotifyCustomer),
		resolution("Customer informed proactively, voucher issued, driver reassigned to nearby delivery."),
	}
	deliveryScript = []Step{
		thought("🤔 Processing delivery availability issue..."),
		action(ContactRecipient),
		action(FindNearbyLocker),
		resolution("Secure alternative delivery location identified and communicated to customer."),
	}
	disputeScript = []Step{
		thought("🤔 Initiating real-time dispute resolution..."),
		action(InitiateMediationFlow),
		action(CollectEvidence),
		resolution("Evidence analyzed, fault determined, instant refund issued, driver exonerated."),
	}
)

// ScriptFor returns a copy of the resolution script for c.
func ScriptFor(c Category) []Step {
	var src []Step
	switch c {
	case Traffic:
		src = trafficScript
	case Merchant:
		src = merchantScript
	case Dispute:
		src = disputeScript
	case Delivery:
		src = deliveryScript
	default:
		src = deliveryScript
	}
	out := make([]Step, len(src))
	copy(out, src)
	return out
}

// ToolsFor returns the tools invoked by c's script, in script order.
func ToolsFor(c Category) []Tool {
	var tools []Tool
	for _, s := range ScriptFor(c) {
		if s.Tool != "" {
			tools = append(tools, s.Tool)
		}
	}
	return tools
}
