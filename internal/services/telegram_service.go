package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/orderdesk/internal/models"
)

// TelegramService sends order notifications to the admin chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	client      *http.Client
	log         *slog.Logger
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string, log *slog.Logger) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     "https://api.telegram.org",
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

// Enabled reports whether both the bot token and the admin chat are configured.
func (s *TelegramService) Enabled() bool {
	return s.botToken != "" && s.adminChatID != ""
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends an HTML message to chatID.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)
	body, err := json.Marshal(telegramMessage{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// OrderCreated posts the new order to the admin chat in the background.
func (s *TelegramService) OrderCreated(_ context.Context, order models.OrderDetail) {
	if !s.Enabled() {
		return
	}
	text := FormatOrderMessage(order)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.SendMessage(ctx, s.adminChatID, text); err != nil {
			s.log.Warn("telegram notification failed", "order_id", order.ID, "error", err)
		}
	}()
}

// OrderFinalized is not announced to the admin chat.
func (s *TelegramService) OrderFinalized(context.Context, uuid.UUID, time.Time) {}

// FormatPrice renders amount with two decimals and thousand separators.
func FormatPrice(amount decimal.Decimal) string {
	str := amount.StringFixed(2)
	sign := ""
	if strings.HasPrefix(str, "-") {
		sign, str = "-", str[1:]
	}
	intPart, frac, _ := strings.Cut(str, ".")

	var result strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}
	return sign + result.String() + "." + frac
}

// FormatOrderMessage builds the admin chat text for a new order.
func FormatOrderMessage(order models.OrderDetail) string {
	var items strings.Builder
	for i, item := range order.Items {
		name := item.Name
		if name == "" {
			name = item.ProductID.String()
		}
		fmt.Fprintf(&items, "%d. <b>%s</b>\n   %d x %s\n",
			i+1, html.EscapeString(name), item.Quantity, FormatPrice(item.Price))
	}

	message := fmt.Sprintf(`<b>🛒 New order</b>
<b>Order:</b> %s
<b>Customer:</b> %s (%s)
<b>Items:</b>
%s
<b>Total:</b> %s
<b>Placed:</b> %s`,
		order.ID,
		html.EscapeString(order.Owner.Name),
		html.EscapeString(order.Owner.Email),
		items.String(),
		FormatPrice(order.Total),
		order.CreatedAtDisplay,
	)
	return strings.TrimSpace(message)
}
