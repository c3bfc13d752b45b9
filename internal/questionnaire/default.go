package questionnaire

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{Topics: []Topic{
		{
			ID:    "emotions",
			Title: "Эмоциональное состояние",
			Basic: []string{
				"Как бы вы описали своё эмоциональное состояние в последние две недели?",
				"Какие ситуации чаще всего вызывают у вас тревогу или раздражение?",
				"Как вы обычно восстанавливаетесь после тяжёлого дня?",
				"Что сейчас приносит вам радость?",
			},
			Extended: []string{
				"Как бы вы описали своё эмоциональное состояние в последние две недели?",
				"Какие ситуации чаще всего вызывают у вас тревогу или раздражение?",
				"Как вы обычно восстанавливаетесь после тяжёлого дня?",
				"Что сейчас приносит вам радость?",
				"Как вы спите и изменился ли ваш сон в последнее время?",
				"С кем вы можете поделиться своими переживаниями?",
				"Какие эмоции вам сложнее всего выражать?",
				"Бывает ли, что вы подавляете чувства, чтобы не расстраивать других?",
				"Как ваше настроение влияет на работу или учёбу?",
				"Что бы вы хотели изменить в своём эмоциональном состоянии?",
			},
		},
		{
			ID:    "relationships",
			Title: "Отношения",
			Basic: []string{
				"Какие отношения сейчас занимают важное место в вашей жизни?",
				"Что для вас самое сложное в общении с близкими?",
				"Как вы обычно ведёте себя в конфликте?",
				"Чего вам не хватает в отношениях с людьми?",
			},
			Extended: []string{
				"Какие отношения сейчас занимают важное место в вашей жизни?",
				"Что для вас самое сложное в общении с близкими?",
				"Как вы обычно ведёте себя в конфликте?",
				"Чего вам не хватает в отношениях с людьми?",
				"Легко ли вам просить о помощи?",
				"Как вы понимаете, что вам доверяют?",
				"Какие модели отношений из вашей семьи вы замечаете у себя?",
				"Как вы переживаете расставания и потери?",
				"Умеете ли вы говорить «нет», когда вам что-то не подходит?",
				"Какими вы хотели бы видеть свои отношения через год?",
			},
		},
		{
			ID:    "self_esteem",
			Title: "Самооценка",
			Basic: []string{
				"Какие качества вы цените в себе больше всего?",
				"За что вы чаще всего себя критикуете?",
				"Как вы реагируете на похвалу?",
				"В каких ситуациях вы чувствуете себя уверенно?",
			},
			Extended: []string{
				"Какие качества вы цените в себе больше всего?",
				"За что вы чаще всего себя критикуете?",
				"Как вы реагируете на похвалу?",
				"В каких ситуациях вы чувствуете себя уверенно?",
				"Часто ли вы сравниваете себя с другими?",
				"Как вы переживаете собственные ошибки?",
				"Чьё мнение о вас для вас важнее всего?",
				"Какие достижения последних лет вы считаете значимыми?",
				"Что мешает вам пробовать новое?",
				"Каким вы хотели бы себя видеть?",
			},
		},
		{
			ID:    "career",
			Title: "Работа и призвание",
			Basic: []string{
				"Насколько вам нравится то, чем вы сейчас занимаетесь?",
				"Что в работе забирает у вас больше всего сил?",
				"Что вас мотивирует двигаться вперёд?",
				"Какой вы видите свою профессиональную жизнь через пять лет?",
			},
			Extended: []string{
				"Насколько вам нравится то, чем вы сейчас занимаетесь?",
				"Что в работе забирает у вас больше всего сил?",
				"Что вас мотивирует двигаться вперёд?",
				"Какой вы видите свою профессиональную жизнь через пять лет?",
				"Как вы справляетесь со сроками и давлением?",
				"Удаётся ли вам отделять работу от личной жизни?",
				"Какие задачи вы выполняете с удовольствием?",
				"Как вы относитесь к критике руководителя или коллег?",
				"Бывает ли у вас ощущение выгорания?",
				"Чему вы хотели бы научиться?",
			},
		},
	}}
}
