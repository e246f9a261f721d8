package flow

import "github.com/BTreeMap/ReplyPipe/internal/models"

// Messages holds the configurable texts of the main menu.
type Messages struct {
	Welcome string
	Menu    string
	Unknown string
}

// DefaultMessages returns the stock welcome, menu and unknown-command texts.
func DefaultMessages() Messages {
	return Messages{
		Welcome: "Hey there 👋 Welcome to this chatbot demo!",
		Menu:    defaultMenu,
		Unknown: "Sorry, I don't understand that command. Please try again by replying with one of the available options.",
	}
}

const defaultMenu = `This is a sample bot to showcase for WhatsApp using the Wassenger API.

Chatbot tasks available:

1️⃣ Create a reminder
2️⃣ List reminders
3️⃣ Delete reminder
4️⃣ Chat with a person

Type *help* to see this message again.

You can also ask the bot to send you multiple sample messages based on the following types:

- Text
- Image
- Video
- Audio
- PDF Document
- Excel document
- File
- Location
- Contact card
- Quote message
- Button
- List
- Emojis 🥳
- Text formatting
- Link preview
- Reaction

Give it a try 😁
`

// Fixed replies of the task flows.
const (
	msgHandoff          = "This chat was assigned to a member of our support team. You will be contacted shortly."
	msgReminderLimit    = "You have reached the maximum number of reminders, please delete one before creating a new one.\n\nReply with *delete* to delete reminders."
	msgAskDescription   = "Please reply with a description for the reminder, up to 200 characters."
	msgInvalidOption    = "Invalid option, please reply with one of the available option number (1 to 7)"
	msgTooShort         = "The reminder text is too short, please send a larger description with 5 characters or more.\n\nIf you do not want to continue, just reply with *stop*"
	msgTooLong          = "The reminder text is too long, please send a shorter description up to 200 characters.\n\nIf you do not want to continue, just reply with *stop*"
	msgReminderSaved    = "All good! I will send you a message when it is time 😀\n\nLet me know if I can do something else for you!"
	msgReminderPrefix   = "Hi! This is a reminder for you:\n\n"
	msgNoRemindersTask  = "You do not have any reminders yet.\n\nCreate one by replying with *create* or *stop* to return to main menu."
	msgNoReminders      = "You do not have any reminders yet. Create one by replying with *create* or *stop* to return to main menu."
	msgReminderNotFound = "The selected reminder was not found.\n\nPlease select a valid reminder by replying *delete* or *stop* to return to main menu."
	msgReminderDeleted  = "The following reminder was deleted successfully:\n\nDate: %s\n\nDescription: %s\n\nReply with *delete* to delete another reminder, *reminders* to list available reminders, or *stop* to return to main menu."
	msgReminderList     = "Here is a list of your reminders:\n\n"
)

// durationOptions are the reminder delays offered at step 1, in menu order.
var durationOptions = []string{"1h", "2h", "24h", "2d", "7d", "14d"}

// buttonSamples maps the demo button menu choices to the sample they trigger.
var buttonSamples = []string{"image", "location", "image", "audio", "video", "document"}

func reminderCreateMenu() models.ButtonsPayload {
	return models.ButtonsPayload{
		Body:   "Please select when you want to be reminded",
		Header: "Task reminder",
		Footer: "Powered by Wassenger",
		Buttons: []models.Button{
			{Text: "1 hour"}, {Text: "2 hours"}, {Text: "24 hours"},
			{Text: "2 days"}, {Text: "7 days"}, {Text: "14 days"},
			{Text: "Cancel"},
		},
	}
}

func demoButtonMenu() models.ButtonsPayload {
	return models.ButtonsPayload{
		Body:   "Select one message type",
		Footer: "You will receive a sample message",
		Buttons: []models.Button{
			{Text: "Image"}, {Text: "Location"}, {Text: "Image"},
			{Text: "Audio"}, {Text: "Video"}, {Text: "Document"},
			{Text: "Cancel"},
		},
	}
}

func demoList() models.ListPayload {
	return models.ListPayload{
		Description: "Select which type of vehicle you are interested in",
		Button:      "Tap to select",
		Title:       "Optional message _title_",
		Footer:      "Optional *message* footer",
		Sections: []models.ListSection{
			{
				Title: "Select a car type",
				Rows: []models.ListRow{
					{ID: "a1", Title: "Coupe", Description: "This a description for coupe cars"},
					{ID: "a2", Title: "Sports", Description: "This a description for sports cars"},
					{ID: "a3", Title: "SUV", Description: "This a description for SUV cars"},
					{ID: "a4", Title: "Minivan", Description: "This a description for minivan cars"},
					{ID: "a5", Title: "Crossover", Description: "This a description for crossover cars"},
					{ID: "a6", Title: "Wagon", Description: "This a description for wagon cars"},
				},
			},
			{
				Title: "Select a motorbike type",
				Rows: []models.ListRow{
					{ID: "b1", Title: "Touring", Description: "Designed to excel at covering long distances"},
					{ID: "b2", Title: "Cruiser", Description: "Harley-Davidsons largely define the cruiser category"},
					{ID: "b3", Title: "Standard", Description: "Motorcycle intended for use on streets and commuting"},
				},
			},
		},
	}
}

const (
	sampleImageURL    = "https://picsum.photos/600"
	sampleVideoURL    = "https://download.samplelib.com/mp4/sample-5s.mp4"
	sampleAudioURL    = "https://download.samplelib.com/mp3/sample-9s.mp3"
	samplePDFURL      = "https://www.w3.org/WAI/ER/tests/xhtml/testfiles/resources/pdf/dummy.pdf"
	sampleZipURL      = "https://www.learningcontainer.com/wp-content/uploads/2020/05/sample-zip-file.zip"
	sampleExcelURL    = "https://go.microsoft.com/fwlink/?LinkID=521962"
	sampleAddress     = "20 W 34th St., New York, NY 10001, United States"
	sampleFormatText  = "This message is formatted using _italic format_, *bold format*, ~strikethrough format~ and ```monospace format```"
	sampleQuoteText   = "This is a quoted reply to your last message"
	sampleEmojiText   = "Hello 👋 \nThis is a test message with emojis 👌 😘 😗 😙 😚 😋 😛 😝 😜 copied as text from:\nhttps://getemoji.com\n\nEmojis 👶 👧 🧒 👦  are simply unicode rich characters, so you can copy & paste them as simple text 😀 👏"
	sampleLinkText    = "Hey checkout this video: https://www.youtube.com/watch?v=dMH0bHeiRNg"
	sampleShowcase    = "Hello everyone, and welcome to this demo showcase of a WhatsApp chatbot! 🎉\n\nDuring this demo, you will get a glimpse of the chatbot's key features, which include instant customer support, interactive conversations, personalized recommendations, and seamless integration with your existing business processes. We are confident that our chatbot will not only save you time and resources but also foster stronger customer relationships and drive growth for your business.\n\nLet's get started! 😀"
	sampleReaction    = "👍"
)
