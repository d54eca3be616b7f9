package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/pointshop/core/telegram/format"
	"github.com/m3rciful/pointshop/internal/cart"
	"github.com/m3rciful/pointshop/internal/catalog"
	"github.com/m3rciful/pointshop/internal/checkout"
	"github.com/m3rciful/pointshop/internal/domain"
	"github.com/m3rciful/pointshop/internal/points"

	tele "gopkg.in/telebot.v4"
)

// All texts below are MarkdownV2 unless noted.
const (
	textMenu           = "Choose a category:"
	textEnterEmail     = "Please enter the email you use in the LMS\\."
	textInvalidEmail   = "That does not look like an email address\\. Try again:"
	textEmailNotFound  = "No LMS user has this email\\. Check it and try again:"
	textDirectoryDown  = "The LMS is not responding right now\\. Try again in a minute:"
	textLoginCancelled = "Sign\\-in cancelled\\. Use /login when you are ready\\."
	textLoggedOut      = "You are signed out\\. Use /login to sign in again\\."
	textCartEmpty      = "Your cart is empty\\."
	textSelection      = "The catalog changed\\. Pick a category again\\."
	textTryLater       = "Something went wrong\\. Please try again later\\."
	textUnknownText    = "I did not get that\\. Use the menu or /help\\."
	textUnknownDoc     = "Files are not supported here\\."
	textNotAdmin       = "This command is for the administrator\\."
	textStaleCart      = "Some items in your cart are no longer sold\\. Clear the cart and add them again\\."
	textNoBalance      = "Could not read your points balance\\. Please try again later\\."
	textDebitFailed    = "Could not debit your points\\. Nothing was ordered\\. Please try again later\\."
	textDebitUncertain = "The LMS did not confirm the payment\\. Nothing was ordered; the administrator will check your balance\\."
	textCartCleared    = "Cart cleared\\."
	textOrderSent      = "Order submitted\\."
)

// Callback toasts are plain text.
const (
	toastNoProducts  = "Nothing in stock here right now"
	toastOutOfStock  = "No more of this item in stock"
	toastGone        = "This item is no longer available"
	toastAdded       = "Added to cart"
	toastRemoved     = "Removed from cart"
	toastStale       = "This button is no longer active"
	toastRateLimited = "Too many requests, slow down a little"
)

// cartButtonPrefix starts the label of the persistent cart reply button.
const cartButtonPrefix = "🛒 Cart"

func cartButtonLabel(n int64) string {
	return fmt.Sprintf("%s (%d)", cartButtonPrefix, n)
}

func isCartButton(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), cartButtonPrefix)
}

func cartUpdatedText(n int64) string {
	return format.MDV2(fmt.Sprintf("Cart updated (%d)", n))
}

func pointsText(n int64) string {
	if n == 1 {
		return "1 point"
	}
	return strconv.FormatInt(n, 10) + " points"
}

// cardCaption renders a product card.
func cardCaption(card catalog.Card) string {
	p := card.Product
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", format.MDV2(p.Name))
	if p.Size != "" {
		fmt.Fprintf(&b, "Size: %s\n", format.MDV2(p.Size))
	}
	fmt.Fprintf(&b, "Price: %s\n", format.MDV2(pointsText(p.Price)))
	fmt.Fprintf(&b, "In stock: %d", p.Remains)
	if card.InCart > 0 {
		fmt.Fprintf(&b, "\nIn your cart: %d", card.InCart)
	}
	fmt.Fprintf(&b, "\n\n_%s %d/%d_", format.MDV2(card.Category.Title()), card.Index+1, card.Total)
	return b.String()
}

func cartText(v cart.View) string {
	var b strings.Builder
	b.WriteString("*Your cart*\n\n")
	for i, l := range v.Lines {
		if l.Product == nil {
			fmt.Fprintf(&b, "%d\\. ~%s~ × %d\n", i+1, format.MDV2(l.Name()), l.Quantity)
			continue
		}
		name := l.Product.Name
		if l.Product.Size != "" {
			name += " (" + l.Product.Size + ")"
		}
		fmt.Fprintf(&b, "%d\\. %s × %d \\= %s\n", i+1, format.MDV2(name), l.Quantity,
			format.MDV2(pointsText(l.Quantity*l.Product.Price)))
	}
	fmt.Fprintf(&b, "\nTotal: *%s*", format.MDV2(pointsText(v.Total)))
	if v.Stale {
		b.WriteString("\n\n")
		b.WriteString(textStaleCart)
	}
	return b.String()
}

func receiptText(r *checkout.Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Order placed* `%s`\n\n", format.MDV2(shortID(r.OrderID)))
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "• %s × %d\n", format.MDV2(l.Name), l.Quantity)
	}
	fmt.Fprintf(&b, "\nTotal: %s\n", format.MDV2(pointsText(r.Total)))
	fmt.Fprintf(&b, "Remaining balance: *%s*", format.MDV2(pointsText(r.Balance)))
	return b.String()
}

func shortageText(e *checkout.ShortageError) string {
	var b strings.Builder
	b.WriteString("Not enough stock for:\n")
	for _, l := range e.Lines {
		fmt.Fprintf(&b, "• %s: you want %d, %d left\n", format.MDV2(l.Name), l.Requested, l.Available)
	}
	b.WriteString("Remove these items from the cart and try again\\.")
	return b.String()
}

func fundsText(e *checkout.InsufficientFundsError) string {
	return format.MDV2(fmt.Sprintf("Not enough points: the order costs %s, your balance is %s.",
		pointsText(e.Total), pointsText(e.Balance)))
}

func welcomeText(rec *domain.AuthorizationRecord) string {
	name := strings.TrimSpace(format.Deref(rec.FirstName, ""))
	if name == "" {
		name = rec.Email
	}
	return fmt.Sprintf("Hello, *%s*\\!", format.MDV2(name))
}

func balanceText(b points.Balance) string {
	if !b.Known {
		return "Your balance is unknown right now\\."
	}
	return "Your balance: *" + format.MDV2(pointsText(b.Points)) + "*"
}

func signedInText(rec *domain.AuthorizationRecord) string {
	return fmt.Sprintf("You are signed in as %s until %s\\.",
		format.MDV2(rec.Email), format.MDV2(rec.ExpiresAt.UTC().Format("2006-01-02")))
}

func helpText(cmds []tele.Command) string {
	var b strings.Builder
	b.WriteString("*Commands*\n")
	for _, c := range cmds {
		fmt.Fprintf(&b, "%s \\- %s\n", format.MDV2(c.Text), format.MDV2(c.Description))
	}
	return strings.TrimRight(b.String(), "\n")
}

func reconciliationText(recs []domain.ReconciliationRecord) string {
	if len(recs) == 0 {
		return "No open reconciliation records\\."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*Open records: %d*\n", len(recs))
	for _, r := range recs {
		line := fmt.Sprintf("%s %s order %s user %d (%s)",
			r.CreatedAt.UTC().Format(time.DateTime), r.Step, shortID(r.OrderID), r.TelegramID, r.ExternalUserID)
		if r.ProductID != nil {
			line += fmt.Sprintf(" product %d × %d", *r.ProductID, r.Quantity)
		}
		if r.Amount > 0 {
			line += " amount " + strconv.FormatInt(r.Amount, 10)
		}
		fmt.Fprintf(&b, "\n`%s`\n%s\n", format.MDV2(r.ID), format.MDV2(line))
		if r.Detail != "" {
			fmt.Fprintf(&b, "_%s_\n", format.MDV2(r.Detail))
		}
	}
	b.WriteString("\n" + format.MDV2("Mark one as fixed with /resolve <id>"))
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
