package messages

import (
	"fmt"
	"strings"
	"time"

	"github.com/BatmanBruc/bat-bot-leecher/internal/entitlement"
	"github.com/BatmanBruc/bat-bot-leecher/types"
)

const ParseModeHTML = "HTML"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func Title(text string) string {
	return fmt.Sprintf("✨ <b>%s</b>", Escape(text))
}

func FileLine(fileName string) string {
	name := strings.TrimSpace(fileName)
	if name == "" {
		name = "file"
	}
	return fmt.Sprintf("📄 <b>File:</b> <code>%s</code>", Escape(name))
}

// Duration renders "5h 07m"; anything under a minute is "<1m".
func Duration(d time.Duration) string {
	if d < time.Minute {
		return "&lt;1m"
	}
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}

func Size(bytes int64) string {
	return fmt.Sprintf("%.1fMB", float64(bytes)/(1024*1024))
}

func Rupees(amount int64) string {
	return fmt.Sprintf("₹%d", amount)
}

func ErrorDefault() string {
	return "🚫 <b>Something went wrong</b>\nPlease try again."
}

func ErrorUnknownCommand() string {
	return "❓ <b>Unknown command</b>\nSend /help to see what I can do."
}

func StartWelcome(freeQuota, validityHours int) string {
	return fmt.Sprintf("👋 <b>Welcome!</b>\nSend me a TeraBox share link and I will fetch the file for you.\n\n"+
		"🆓 <b>%d free downloads</b> to start\n"+
		"🔗 <b>Verify</b> through a short link for %dh unlimited access\n"+
		"💎 <b>Premium</b> from %s for instant access\n\n"+
		"Use /stats to see your usage.", freeQuota, validityHours, Rupees(5))
}

func Help() string {
	return "ℹ️ <b>Commands</b>\n" +
		"/start - welcome and access options\n" +
		"/stats - your downloads and access\n" +
		"/premium - premium status\n" +
		"/buy - buy premium\n" +
		"/verify - get a verification link\n\n" +
		"Send a TeraBox link to download."
}

func AccessRequired(freeQuota, validityHours int, shortenerName string) string {
	if shortenerName == "" {
		shortenerName = "short link"
	}
	return fmt.Sprintf("🔒 <b>Download access required</b>\n\nYou have used all %d free downloads.\n\n"+
		"💎 <b>Premium</b>: no ads, instant activation\n"+
		"🔗 <b>%s verification</b>: free, %dh unlimited access", freeQuota, Escape(shortenerName), validityHours)
}

func VerifyLink(link string, validityHours int) string {
	return fmt.Sprintf("🔗 <b>Verification link</b>\n\n1. Open the link below and finish the steps\n2. You will be sent back here automatically\n\n"+
		"<a href=\"%s\">Verify now</a>\n\n⏰ Grants %dh of unlimited downloads.", Escape(link), validityHours)
}

func VerifySuccess(left time.Duration) string {
	return fmt.Sprintf("✅ <b>Verified!</b>\nUnlimited downloads for %s.", Duration(left))
}

func VerifyFailed() string {
	return "❌ <b>Verification failed</b>\nThe token is invalid, expired or already used. Request a new one with /verify."
}

func VerifyUsage() string {
	return "Usage: <code>/verify &lt;token&gt;</code>"
}

func PlansMenu(plans []types.Plan) string {
	var b strings.Builder
	b.WriteString("💎 <b>Premium plans</b>\n\n")
	for _, p := range plans {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("%dh", p.Hours)
		}
		fmt.Fprintf(&b, "• <b>%s</b>: %s for %dh\n", Escape(name), Rupees(p.Price), p.Hours)
	}
	b.WriteString("\nPick a plan to get a payment link.")
	return b.String()
}

func PlanButton(p types.Plan) string {
	name := p.Name
	if name == "" {
		name = fmt.Sprintf("%dh", p.Hours)
	}
	return fmt.Sprintf("%s · %s", name, Rupees(p.Price))
}

func PaymentRequest(p *types.PaymentRecord, upiID string, ttl time.Duration) string {
	return fmt.Sprintf("🧾 <b>Payment request</b>\n\n"+
		"🆔 <b>Payment ID:</b> <code>%s</code>\n"+
		"📦 <b>Plan:</b> %s (%dh)\n"+
		"💰 <b>Amount:</b> %s\n"+
		"🏦 <b>UPI:</b> <code>%s</code>\n\n"+
		"<a href=\"%s\">Pay with UPI</a>\n\n"+
		"Add the payment ID to the note, then press <b>I have paid</b>. This request expires in %s.",
		p.ID, Escape(p.PlanName), p.Hours, Rupees(p.Amount), Escape(upiID), Escape(p.PayoutInstruction), Duration(ttl))
}

func PaymentSubmitted(paymentID string) string {
	return fmt.Sprintf("⏳ <b>Payment submitted</b>\nID <code>%s</code> is waiting for confirmation. You will be notified here.", paymentID)
}

func OperatorNotice(p *types.PaymentRecord, username string) string {
	who := fmt.Sprintf("<code>%d</code>", p.UserID)
	if username != "" {
		who += " @" + Escape(username)
	}
	return fmt.Sprintf("💳 <b>Payment claim</b>\n\n"+
		"🆔 <code>%s</code>\n👤 %s\n📦 %s (%dh)\n💰 %s\n\nConfirm with <code>/confirm %s</code>",
		p.ID, who, Escape(p.PlanName), p.Hours, Rupees(p.Amount), p.ID)
}

func PaymentConfirmedOperator(p *types.PaymentRecord) string {
	return fmt.Sprintf("✅ Payment <code>%s</code> confirmed for user <code>%d</code> (%s).", p.ID, p.UserID, Rupees(p.Amount))
}

func PaymentConfirmedUser(sub types.Subscription) string {
	return fmt.Sprintf("🎉 <b>Premium activated!</b>\n\n⏰ %dh of unlimited downloads\n📅 Until %s UTC",
		sub.Hours, sub.EndsAt.UTC().Format("2006-01-02 15:04"))
}

func ConfirmUsage() string {
	return "Usage: <code>/confirm &lt;payment_id&gt;</code>"
}

func ConfirmRejected(reason string) string {
	return "❌ <b>Not confirmed:</b> " + Escape(reason)
}

func NotOperator() string {
	return "⛔ This command is for operators only."
}

func UnknownPlan() string {
	return "❓ <b>Unknown plan</b>\nSend /buy to see the available plans."
}

func AlreadyPremium(left time.Duration) string {
	return fmt.Sprintf("💎 <b>Premium is already active</b>\n%s remaining. You can buy again after it ends.", Duration(left))
}

func TooManyPending() string {
	return "⏳ <b>You already have a pending payment</b>\nFinish it or wait until it expires."
}

func Stats(st entitlement.Status) string {
	var b strings.Builder
	b.WriteString("📊 <b>Your stats</b>\n\n")
	fmt.Fprintf(&b, "⬇️ <b>Downloads:</b> %d\n", st.TotalFiles)
	fmt.Fprintf(&b, "🆓 <b>Free left:</b> %d of %d\n", st.FreeRemaining, st.FreeQuota)
	b.WriteString("🎫 <b>Access:</b> " + Badge(st) + "\n")
	fmt.Fprintf(&b, "💰 <b>Total spent:</b> %s (%d purchases)\n", Rupees(st.TotalSpent), st.Purchases)
	fmt.Fprintf(&b, "📅 <b>Joined:</b> %s", st.JoinedAt.UTC().Format("2006-01-02"))
	return b.String()
}

func Premium(st entitlement.Status) string {
	if st.Subscription == nil {
		return "💎 <b>No active premium</b>\nSend /buy to pick a plan."
	}
	return fmt.Sprintf("💎 <b>Premium active</b>\n\n⏰ %s remaining\n📅 Until %s UTC",
		Duration(st.Subscription.Remaining), st.Subscription.EndsAt.UTC().Format("2006-01-02 15:04"))
}

// Badge is the one-line access summary shown on progress messages.
func Badge(st entitlement.Status) string {
	switch {
	case st.Subscription != nil:
		return "💎 Premium (" + Duration(st.Subscription.Remaining) + ")"
	case st.FreeRemaining > 0:
		return fmt.Sprintf("🆓 Free (%d left)", st.FreeRemaining)
	case st.Verification != nil:
		return "✅ Verified (" + Duration(st.VerifiedLeft) + ")"
	default:
		return "🔒 Access required"
	}
}

func QueueQueued(link string, position int) string {
	return fmt.Sprintf("⏳ <b>Queued:</b> position %d\n🔗 %s", position, Escape(link))
}

func QueueStarted(link string) string {
	return "🔍 <b>Processing link...</b>\n🔗 " + Escape(link)
}

func Downloading(fileName string, size int64) string {
	return fmt.Sprintf("⬇️ <b>Downloading</b>\n%s\n📊 %s", FileLine(fileName), Size(size))
}

func FileTooLarge(size, limit int64, premium bool) string {
	msg := fmt.Sprintf("❌ <b>File too large:</b> %s\n<b>Your limit:</b> %s", Size(size), Size(limit))
	if !premium {
		msg += "\n💎 Premium raises the limit."
	}
	return msg
}

func ErrorFetchFailed(err error) string {
	msg := "❌ <b>Could not fetch this link</b>\nTry a different TeraBox link."
	if err != nil {
		msg += "\n\n" + fmt.Sprintf("<code>%s</code>", Escape(err.Error()))
	}
	return msg
}

func ErrorUploadFailed(fileName string) string {
	return "🚫 <b>Upload failed</b>\n" + FileLine(fileName)
}

func DocumentCaption(fileName string, size int64, kind string, premium bool) string {
	user := "🆓 Free"
	if premium {
		user = "💎 Premium"
	}
	return fmt.Sprintf("%s\n📊 <b>Size:</b> %s\n🏷️ <b>Type:</b> %s\n👤 %s", FileLine(fileName), Size(size), Escape(kind), user)
}

func DownloadCompleted(st entitlement.Status) string {
	return "✅ <b>Download completed!</b>\n" + Badge(st)
}

func AccessLost() string {
	return "🔒 <b>Access ended before the download started</b>\nUse /verify or /buy to continue."
}

func QueueFull() string {
	return "🚦 <b>The download queue is full</b>\nPlease try again in a minute."
}
