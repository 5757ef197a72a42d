package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Guiziweb/VideoAiStudio/internal/config"
)

const (
	TelegramUserKey = "telegram_user"
	AccountIDKey    = "account_id"

	WebhookSecretHeader = "X-Webhook-Secret"

	initDataMaxAge = time.Hour
)

type TelegramInitData struct {
	QueryID      string `json:"query_id"`
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	LanguageCode string `json:"language_code"`
	AuthDate     int64  `json:"auth_date"`
	Hash         string `json:"hash"`
}

type telegramWebAppUser struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	LanguageCode string `json:"language_code"`
}

func TelegramAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		initData := c.Get("X-Telegram-Init-Data")
		if initData == "" {
			initData = strings.TrimPrefix(c.Get("Authorization"), "tma ")
		}

		if initData == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing telegram init data",
			})
		}

		userData, err := ValidateTelegramInitData(initData, cfg.Telegram.BotToken, time.Now())
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid telegram init data: " + err.Error(),
			})
		}
		if userData.UserID == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "telegram init data has no user",
			})
		}

		c.Locals(TelegramUserKey, userData)
		c.Locals(AccountIDKey, userData.UserID)

		return c.Next()
	}
}

// ValidateTelegramInitData checks the WebApp init data signature against the
// bot token and rejects data older than one hour.
func ValidateTelegramInitData(initData, botToken string, now time.Time) (*TelegramInitData, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "missing hash")
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid auth_date")
	}

	if now.Sub(time.Unix(authDate, 0)) > initDataMaxAge {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "auth_date expired")
	}

	values.Del("hash")
	if !hmac.Equal([]byte(SignInitData(values, botToken)), []byte(hash)) {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid hash")
	}

	userData := &TelegramInitData{
		QueryID:  values.Get("query_id"),
		AuthDate: authDate,
		Hash:     hash,
	}

	if raw := values.Get("user"); raw != "" {
		var user telegramWebAppUser
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid user")
		}
		userData.UserID = user.ID
		userData.Username = user.Username
		userData.FirstName = user.FirstName
		userData.LastName = user.LastName
		userData.LanguageCode = user.LanguageCode
	}

	return userData, nil
}

// SignInitData computes the hex hash Telegram attaches to init data. values
// must not contain the hash itself.
func SignInitData(values url.Values, botToken string) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+values.Get(key))
	}

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(botToken))

	h := hmac.New(sha256.New, secretKey.Sum(nil))
	h.Write([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

// WebhookSecret guards server-to-server routes with a shared secret header.
// An empty secret closes the routes.
func WebhookSecret(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "webhook secret not configured",
			})
		}

		given := c.Get(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid webhook secret",
			})
		}

		return c.Next()
	}
}

func GetAccountID(c *fiber.Ctx) int64 {
	accountID, ok := c.Locals(AccountIDKey).(int64)
	if !ok {
		return 0
	}
	return accountID
}

func GetTelegramUser(c *fiber.Ctx) *TelegramInitData {
	userData, ok := c.Locals(TelegramUserKey).(*TelegramInitData)
	if !ok {
		return nil
	}
	return userData
}
