package webhook

// User-facing texts sent back to Telegram chats.
const (
	msgWelcome          = "Welcome! Open the app below to create quizzes and follow your groups."
	msgWelcomeButton    = "Open app"
	msgStartInGroup     = "Send /start to me in a private chat to use the app."
	msgInvalidToken     = "This link is invalid or has expired. Generate a new one in the app."
	msgExpiredToken     = "This link has expired or was already used. Generate a new one in the app."
	msgUserLinked       = "This account is already linked to another Telegram user."
	msgTelegramInUse    = "Your Telegram account is already linked to another account."
	msgLinked           = "Your Telegram account is now linked. You can add me to your groups."
	msgUserNotLinked    = "Link your Telegram account in the app first, then send /bind again."
	msgBound            = "This group is now bound to your account. Quizzes can be sent here."
	msgInviterNotLinked = "Thanks for adding me! Whoever added me must link their Telegram account in the app, then send /bind here."
	msgAutoBound        = "Thanks for adding me! This group is now bound to your account."
)
