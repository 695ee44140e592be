package bot

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"
)

// AdminChecker reports whether a user holds admin rights.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// AdminMiddleware lets only admins through. Services enforce admin rights
// on their own as well.
func AdminMiddleware(admins AdminChecker) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}

			ok, err := admins.IsAdmin(context.Background(), sender.ID)
			if err != nil {
				log.Error().Err(err).Int64("user_id", sender.ID).Msg("Admin check failed")
				return c.Reply("❌ Something went wrong, please try again later")
			}
			if !ok {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply("❌ Admin rights required")
			}

			return next(c)
		}
	}
}

// LoggingMiddleware logs every update once its handler has returned.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			err := next(c)

			event := log.Debug()
			if err != nil {
				event = log.Warn().Err(err)
			}
			if sender := c.Sender(); sender != nil {
				event = event.Int64("user_id", sender.ID).Str("username", sender.Username)
			}
			if chat := c.Chat(); chat != nil {
				event = event.Int64("chat_id", chat.ID).Str("chat_type", string(chat.Type))
			}
			event.
				Str("command", commandOf(c.Text())).
				Dur("took", time.Since(start)).
				Msg("Update handled")

			return err
		}
	}
}

// commandOf returns the leading /command of text, or "text" for plain
// messages so that verification codes never reach the logs.
func commandOf(text string) string {
	if !strings.HasPrefix(text, "/") {
		return "text"
	}
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd
}

// RecoveryMiddleware turns a handler panic into a generic reply.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					event := log.Error().Interface("panic", r)
					if sender := c.Sender(); sender != nil {
						event = event.Int64("user_id", sender.ID)
					}
					event.Msg("Recovered from panic in Telegram handler")
					err = c.Reply("❌ Something went wrong, please try again later")
				}
			}()
			return next(c)
		}
	}
}
