package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Guiziweb/VideoAiStudio/internal/middleware"
	"github.com/Guiziweb/VideoAiStudio/internal/service"
)

// GetWallet registers the caller on first use and returns their wallet
func (h *Handler) GetWallet(c *fiber.Ctx) error {
	telegramUser := middleware.GetTelegramUser(c)
	if telegramUser == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authorization required",
		})
	}

	account, _, err := h.accountSvc.Register(c.Context(), service.TelegramUser{
		ID:           telegramUser.UserID,
		Username:     optional(telegramUser.Username),
		FirstName:    optional(telegramUser.FirstName),
		LastName:     optional(telegramUser.LastName),
		LanguageCode: optional(telegramUser.LanguageCode),
	})
	if err != nil {
		return h.fail(c, err, "failed to load wallet")
	}

	return c.JSON(fiber.Map{
		"account": account.Account,
		"wallet":  account.Wallet,
	})
}

// GetWalletTransactions returns the wallet history
func (h *Handler) GetWalletTransactions(c *fiber.Ctx) error {
	accountID := middleware.GetAccountID(c)

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	transactions, err := h.walletSvc.Transactions(c.Context(), accountID, limit, offset)
	if err != nil {
		return h.fail(c, err, "failed to load transactions")
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
