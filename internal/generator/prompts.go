package generator

import (
	"fmt"
	"strings"
)

const ConsultSystemPrompt = `Ты - опытный психолог-консультант. Твоя задача - предоставить профессиональную психологическую поддержку и консультацию.

Правила работы:
1. Отвечай с позиции профессионального психолога
2. Будь эмпатичным и поддерживающим
3. Не давай медицинских диагнозов
4. При серьезных проблемах рекомендуй обратиться к специалисту
5. Используй техники когнитивно-поведенческой терапии
6. Отвечай на русском языке
7. Будь конкретным и практичным в советах`

const MapSystemPrompt = `Ты - профессиональный психолог, специализирующийся на создании психологических карт личности.

Твоя задача - проанализировать ответы человека на психологические вопросы и создать подробную психологическую карту.

Структура карты должна включать:
1. Эмоциональное состояние
2. Психологические особенности
3. Сильные стороны личности
4. Области для развития
5. Рекомендации по самопомощи
6. Общие выводы

Будь профессиональным, но доступным в формулировках. Используй эмпатичный тон.`

// BuildConsultPrompt wraps the user's question.
func BuildConsultPrompt(question string) string {
	return fmt.Sprintf("Вопрос пользователя: %s\n\nПожалуйста, предоставь профессиональную психологическую консультацию.", question)
}

// BuildMapPrompt renders the questionnaire as numbered question/answer pairs.
func BuildMapPrompt(req MapRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Тип карты: %s\n", req.Variant.Title())
	if req.Topic != "" {
		fmt.Fprintf(&b, "Тема: %s\n", req.Topic)
	}
	b.WriteString("\nВопросы и ответы пользователя:\n\n")
	b.WriteString(Transcript(req.Questions, req.Answers))
	b.WriteString("\nСоздай подробную психологическую карту на основе этих ответов. ")
	b.WriteString("Структурируй информацию по разделам и дай практические рекомендации.")
	return b.String()
}

// Transcript formats questions and answers pairwise.
func Transcript(questions, answers []string) string {
	var b strings.Builder
	for i, q := range questions {
		a := ""
		if i < len(answers) {
			a = answers[i]
		}
		fmt.Fprintf(&b, "Вопрос %d: %s\nОтвет: %s\n\n", i+1, q, a)
	}
	return b.String()
}
