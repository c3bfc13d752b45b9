package conversation

import (
	"fmt"
	"html"
	"strings"

	"psybot/internal/models"
	"psybot/internal/questionnaire"
)

const (
	ButtonConsult  = "1️⃣ Получить консультацию"
	ButtonMap      = "2️⃣ Создать психологическую карту"
	ButtonBasic    = "Базовая (4 вопроса)"
	ButtonExtended = "Расширенная (10 вопросов)"
	ButtonBack     = "⬅️ Назад"
	ButtonHome     = "🏠 Главное меню"
)

const (
	textWelcome       = "Добро пожаловать в психологический бот!\n\nВыберите действие:"
	textMenu          = "Выберите действие:"
	textMenuInvalid   = "Пожалуйста, выберите действие из меню."
	textConsultPrompt = "Пожалуйста, опишите ваш вопрос или ситуацию, с которой вы хотите обратиться к психологу."
	textConsultEmpty  = "Вопрос не может быть пустым. Опишите, что вас беспокоит."
	textConsultWait   = "Ваш вопрос принят. Пожалуйста, подождите, идет обработка..."
	textConsultFailed = "Извините, произошла ошибка при обработке вашего запроса. Попробуйте позже."
	textTopicPrompt   = "Выберите тему психологической карты:"
	textTopicInvalid  = "Пожалуйста, выберите тему из списка."
	textTypePrompt    = "Выберите тип психологической карты:"
	textTypeInvalid   = "Пожалуйста, выберите тип карты."
	textAnswerEmpty   = "Ответ не может быть пустым. Пожалуйста, ответьте на вопрос."
	textMapWait       = "Спасибо за ваши ответы! Формируется психологическая карта..."
	textMapSent       = "Ваша карта отправлена на модерацию. После проверки вы получите результат."
	textMapFailed     = "Извините, произошла ошибка при создании карты. Попробуйте позже."
	textContextLost   = "Ошибка: потерян контекст. Начните заново с /start"
	textNonText       = "Пожалуйста, отвечайте текстом."
	textStoreFailed   = "Извините, не удалось сохранить ваш ответ. Пожалуйста, отправьте его ещё раз."
	textUnknownCmd    = "Неизвестная команда. Используйте /help для списка команд."
)

const textHelp = `🤖 Психологический бот

Доступные команды:
/start - Начать работу с ботом
/menu - Вернуться в главное меню
/back - Вернуться на шаг назад
/help - Показать эту справку

Функции бота:
1️⃣ Получить консультацию - задайте вопрос психологу
2️⃣ Создать психологическую карту - пройдите опрос и получите персональную карту

Во время опроса можно вернуться назад кнопкой «⬅️ Назад» — уже данные ответы сохранятся.`

func textRateLimited(seconds int) string {
	return fmt.Sprintf("Пожалуйста, подождите %d секунд перед следующим запросом.", seconds)
}

func textQuestionnaireIntro(n int, first string) string {
	return fmt.Sprintf("Вам будет задано %d вопросов. Отвечайте честно.\n\n%s", n, questionLabel(0, n, first))
}

func questionLabel(idx, total int, q string) string {
	return fmt.Sprintf("Вопрос %d из %d:\n%s", idx+1, total, q)
}

var navRow = []string{ButtonBack, ButtonHome}

func mainKeyboard() [][]string {
	return [][]string{{ButtonConsult}, {ButtonMap}}
}

func variantKeyboard() [][]string {
	return [][]string{{ButtonBasic}, {ButtonExtended}, navRow}
}

func topicKeyboard(c *questionnaire.Catalog) [][]string {
	labels := c.Labels()
	rows := make([][]string, 0, len(labels)+1)
	for _, l := range labels {
		rows = append(rows, []string{l})
	}
	return append(rows, navRow)
}

func navKeyboard() [][]string {
	return [][]string{navRow}
}

func menuReply(text string) models.Reply {
	return models.Reply{Text: text, Keyboard: mainKeyboard()}
}

// consultNotice is the HTML message admins receive for a consultation question.
func consultNotice(in Input, question string) string {
	return fmt.Sprintf("📝 <b>Вопрос психологу</b>\nID: <code>%d</code>\nНик: %s\n\n<b>Вопрос:</b>\n%s",
		in.UserID, usernameLabel(in.Username), html.EscapeString(question))
}

func usernameLabel(username string) string {
	username = strings.TrimPrefix(username, "@")
	if username == "" {
		return "-"
	}
	return "@" + html.EscapeString(username)
}
