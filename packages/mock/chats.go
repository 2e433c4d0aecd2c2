package mock

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the DD.MM.YYYY format of the history date filters.
const DateLayout = "02.01.2006"

var datePattern = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)

// ParseDate parses a DD.MM.YYYY date. The year must have exactly four
// digits and the day must exist in that month.
func ParseDate(s string) (time.Time, error) {
	if !datePattern.MatchString(s) {
		return time.Time{}, fmt.Errorf("invalid date format %q, expected DD.MM.YYYY", s)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Column is one selectable column of the history table.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Columns lists the history table columns in display order. The detail
// column is always shown after them.
var Columns = []Column{
	{Key: "startTime", Label: "Algusaeg"},
	{Key: "endTime", Label: "Lõppaeg"},
	{Key: "customerSupport", Label: "Nõustaja"},
	{Key: "customer", Label: "Kasutaja"},
	{Key: "channel", Label: "Kanal"},
	{Key: "rating", Label: "Hinnang"},
}

// Chat is one row of the conversation history.
type Chat struct {
	ID              string    `json:"id"`
	Start           time.Time `json:"-"`
	End             time.Time `json:"-"`
	StartTime       string    `json:"startTime"`
	EndTime         string    `json:"endTime"`
	CustomerSupport string    `json:"customerSupport"`
	Customer        string    `json:"customer"`
	Channel         string    `json:"channel"`
	Rating          int       `json:"rating"`
	LastMessage     string    `json:"lastMessage"`
}

var (
	supportNames  = []string{"Mari Maasikas", "Jaan Tamm", "Liis Kask", "Peeter Saar"}
	customerNames = []string{"Kati Karu", "Toomas Lepp", "Anna Mets", "Mihkel Pärn", "Eva Kuusk"}
	channels      = []string{"Veeb", "Facebook", "Telegram"}
	messages      = []string{
		"Kuidas taotleda ID-kaarti?",
		"Soovin uuendada elamisluba",
		"Millal avatakse teenindus?",
		"Kus näen oma maksuteadet?",
		"Aitäh abi eest!",
	}
)

// rowNamespace keeps generated chat IDs stable across runs.
var rowNamespace = uuid.MustParse("6f1d2c8e-8a52-4f4e-9a3c-3b1f0f6d2a11")

// FirstChat is the start time of the first generated chat.
var FirstChat = time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)

// GenerateChats returns n deterministic chats, seven hours apart.
func GenerateChats(n int) []Chat {
	chats := make([]Chat, 0, n)
	for i := 0; i < n; i++ {
		start := FirstChat.Add(time.Duration(i) * 7 * time.Hour)
		end := start.Add(time.Duration(5+i%20) * time.Minute)
		chats = append(chats, Chat{
			ID:              uuid.NewSHA1(rowNamespace, []byte(fmt.Sprintf("chat-%d", i))).String(),
			Start:           start,
			End:             end,
			StartTime:       start.Format("02.01.2006 15:04:05"),
			EndTime:         end.Format("02.01.2006 15:04:05"),
			CustomerSupport: supportNames[i%len(supportNames)],
			Customer:        customerNames[i%len(customerNames)],
			Channel:         channels[i%len(channels)],
			Rating:          1 + i%10,
			LastMessage:     messages[i%len(messages)],
		})
	}
	return chats
}

// Filter selects chats for the history table.
type Filter struct {
	From   time.Time // inclusive, zero for no bound
	To     time.Time // inclusive whole day, zero for no bound
	Search string
}

func (f Filter) matches(c Chat) bool {
	if !f.From.IsZero() && c.Start.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !c.Start.Before(f.To.AddDate(0, 0, 1)) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		haystack := strings.ToLower(strings.Join([]string{
			c.StartTime, c.EndTime, c.CustomerSupport, c.Customer, c.Channel, c.LastMessage,
		}, " "))
		if !strings.Contains(haystack, q) {
			return false
		}
	}
	return true
}

// Apply returns the chats matching f, in order.
func (f Filter) Apply(chats []Chat) []Chat {
	out := make([]Chat, 0, len(chats))
	for _, c := range chats {
		if f.matches(c) {
			out = append(out, c)
		}
	}
	return out
}
