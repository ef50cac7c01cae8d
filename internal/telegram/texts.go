package telegram

// Menu button labels.
const (
	buttonChat      = "Пообщаться 💬"
	buttonAdvice    = "Советы 🧘"
	buttonHistory   = "История 📖"
	buttonHelp      = "Помощь 🆘"
	buttonBreathing = "Техника дыхания 🌬️"
	buttonGrounding = "Метод 5-4-3-2-1 🌿"
	buttonEmergency = "Экспресс-помощь 🆘"
	buttonBack      = "Назад ◀️"
	buttonExitChat  = "Выход 🔙"
)

// Fixed reply texts.
const (
	textGreeting = "🌸 Привет! Я твой цифровой помощник для психологической поддержки"
	textAdminTag = "\n\n⚙️ Режим администратора"

	textChatStarted = "💬 Режим общения активирован. Напишите, что вас тревожит...\n\nНапишите «стоп», чтобы выйти."
	textChatExited  = "🏁 Вы вышли из режима общения. Чем могу помочь дальше?"

	textAdviceMenu = "🧘 Выберите одну из техник:"
	textBreathing  = "🌬️ Техника \"4-7-8\":\n1. Вдох через нос 4 сек\n2. Задержка дыхания 7 сек\n3. Выдох через рот 8 сек\nПовторить 3-5 раз"
	textGrounding  = "🌿 Метод 5-4-3-2-1:\n1. Назовите 5 вещей, которые видите\n2. 4 вещи, которые можете потрогать\n3. 3 звука\n4. 2 запаха\n5. 1 эмоция"
	textEmergency  = "🚨 Экстренная помощь:\n1. Сосредоточьтесь на дыхании\n2. Выпейте воды\n3. Позвоните специалисту: +7-999-123-45-67"
	textBackToMenu = "⬅️ Возвращаюсь в главное меню"

	textHelp = "📞 Телефон доверия: 8-800-2000-122 (бесплатно, круглосуточно)\n👨⚕️ Личный специалист: +7-999-123-45-67"

	textHistoryHeader  = "📜 Последние сообщения:"
	textHistoryContext = "📌 Контекст:"
	textHistoryEmpty   = "Отсутствует"
)

func mainKeyboard() *ReplyKeyboardMarkup {
	return &ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]KeyboardButton{
			{{Text: buttonChat}, {Text: buttonAdvice}},
			{{Text: buttonHistory}, {Text: buttonHelp}},
		},
	}
}

func adviceKeyboard() *ReplyKeyboardMarkup {
	return &ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]KeyboardButton{
			{{Text: buttonBreathing}, {Text: buttonGrounding}},
			{{Text: buttonEmergency}, {Text: buttonBack}},
		},
	}
}

func chatKeyboard() *ReplyKeyboardMarkup {
	return &ReplyKeyboardMarkup{
		ResizeKeyboard: true,
		Keyboard: [][]KeyboardButton{
			{{Text: buttonExitChat}},
		},
	}
}
