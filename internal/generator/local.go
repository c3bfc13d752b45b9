package generator

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// LocalProvider answers from a fixed set of templates. It needs no network
// and is used when OpenAI is not configured or unavailable.
type LocalProvider struct{}

// NewLocalProvider creates the offline template provider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (p *LocalProvider) Name() string {
	return "local"
}

type cannedTopic struct {
	keywords []string
	answer   string
}

var cannedTopics = []cannedTopic{
	{
		keywords: []string{"тревог", "беспоко", "паник", "страх"},
		answer: "Тревога — естественная реакция на неопределённость. Попробуйте технику «5-4-3-2-1»: " +
			"назовите 5 вещей, которые видите, 4 — которые можете потрогать, 3 — которые слышите, " +
			"2 — запаха и 1 вкус. Замедленное дыхание (вдох на 4 счёта, выдох на 6) снижает напряжение. " +
			"Записывайте тревожные мысли и спрашивайте себя, какие факты их подтверждают, а какие опровергают.",
	},
	{
		keywords: []string{"стресс", "устал", "выгоран", "нет сил"},
		answer: "Похоже, вы долго работаете на пределе. Важно восстановить базовые ресурсы: сон, питание, " +
			"движение. Выделите в дне хотя бы 20 минут без обязательств. Разделите задачи на " +
			"«обязательно», «желательно» и «можно отложить» — это снижает ощущение перегруза.",
	},
	{
		keywords: []string{"отношен", "партнер", "партнёр", "муж", "жена", "ссор", "расстав"},
		answer: "В отношениях многое решает умение говорить о своих чувствах без обвинений. " +
			"Используйте «я-сообщения»: «я расстраиваюсь, когда…» вместо «ты всегда…». " +
			"Договоритесь о спокойном времени для разговора и слушайте, чтобы понять, а не чтобы ответить.",
	},
	{
		keywords: []string{"сон", "бессонн", "не могу уснуть", "просыпаюсь"},
		answer: "Сон чувствителен к режиму. Ложитесь и вставайте в одно время, уберите экраны за час до сна, " +
			"оставьте кровать только для сна. Если не удаётся уснуть за 20 минут, встаньте и займитесь " +
			"чем-то спокойным при приглушённом свете.",
	},
	{
		keywords: []string{"самооцен", "неуверен", "не нравлюсь", "никчем"},
		answer: "Самооценка складывается из того, как мы с собой разговариваем. Отмечайте каждый вечер " +
			"три вещи, которые у вас получились. Замечайте внутреннего критика и спрашивайте: " +
			"сказал бы я так близкому другу?",
	},
	{
		keywords: []string{"грусть", "грустно", "депресс", "одиноч", "пустот"},
		answer: "Спасибо, что делитесь. Подавленность часто усиливается в изоляции, поэтому небольшие " +
			"контакты с людьми и простые приятные дела действительно помогают. Если тяжёлое состояние " +
			"держится больше двух недель, обязательно обратитесь к специалисту.",
	},
}

const defaultConsultAnswer = "Спасибо за ваш вопрос. Постарайтесь описать, что именно вы чувствуете и в какие " +
	"моменты это проявляется сильнее всего. Наблюдение за своими реакциями — первый шаг к изменениям. " +
	"Позаботьтесь о базовых потребностях: сне, питании, отдыхе и общении. Если ситуация вызывает " +
	"сильный дискомфорт, рекомендую обратиться к психологу очно."

func (p *LocalProvider) Consult(_ context.Context, question string) (string, error) {
	q := strings.ToLower(question)
	for _, topic := range cannedTopics {
		for _, kw := range topic.keywords {
			if strings.Contains(q, kw) {
				return topic.answer + "\n\n" + disclaimer, nil
			}
		}
	}
	return defaultConsultAnswer + "\n\n" + disclaimer, nil
}

const disclaimer = "Это общая рекомендация и она не заменяет консультацию специалиста."

func (p *LocalProvider) GenerateMap(_ context.Context, req MapRequest) (string, error) {
	if len(req.Questions) == 0 || len(req.Questions) != len(req.Answers) {
		return "", fmt.Errorf("local map: %d answers for %d questions", len(req.Answers), len(req.Questions))
	}

	var total int
	for _, a := range req.Answers {
		total += utf8.RuneCountInString(strings.TrimSpace(a))
	}
	avg := total / len(req.Answers)

	var b strings.Builder
	fmt.Fprintf(&b, "🧭 Психологическая карта (%s)\n", req.Variant.Title())
	if req.Topic != "" {
		fmt.Fprintf(&b, "Тема: %s\n", req.Topic)
	}

	b.WriteString("\n1. Эмоциональное состояние\n")
	b.WriteString(emotionalSummary(req.Answers))

	b.WriteString("\n\n2. Психологические особенности\n")
	if avg > 80 {
		b.WriteString("Вы склонны к глубокой рефлексии и подробно анализируете свой опыт.")
	} else if avg > 25 {
		b.WriteString("Вы умеете формулировать свои переживания, сохраняя баланс между чувствами и рассудком.")
	} else {
		b.WriteString("Вы отвечаете сдержанно; возможно, говорить о себе пока непривычно — это нормально.")
	}

	b.WriteString("\n\n3. Сильные стороны\n")
	b.WriteString("Готовность честно ответить на вопросы о себе уже говорит о зрелости и желании меняться.")

	b.WriteString("\n\n4. Области для развития\n")
	fmt.Fprintf(&b, "Обратите внимание на тему вопроса «%s» — ваш ответ на него стоит обсудить подробнее.",
		strings.TrimSuffix(req.Questions[longestAnswer(req.Answers)], "?"))

	b.WriteString("\n\n5. Рекомендации по самопомощи\n")
	b.WriteString("— Ведите дневник наблюдений за настроением.\n")
	b.WriteString("— Планируйте ежедневное время на отдых без гаджетов.\n")
	b.WriteString("— Делитесь переживаниями с людьми, которым доверяете.")

	b.WriteString("\n\n6. Общие выводы\n")
	b.WriteString("Ваши ответы показывают ресурс для изменений. Двигайтесь небольшими шагами и отмечайте прогресс.")

	return b.String(), nil
}

func emotionalSummary(answers []string) string {
	joined := strings.ToLower(strings.Join(answers, " "))
	for _, topic := range cannedTopics[:2] {
		for _, kw := range topic.keywords {
			if strings.Contains(joined, kw) {
				return "В ответах заметны признаки напряжения и усталости; важно уделить внимание восстановлению."
			}
		}
	}
	return "Ваше состояние выглядит в целом устойчивым, хотя отдельные темы требуют внимания."
}

func longestAnswer(answers []string) int {
	best, bestLen := 0, -1
	for i, a := range answers {
		if n := utf8.RuneCountInString(a); n > bestLen {
			best, bestLen = i, n
		}
	}
	return best
}
