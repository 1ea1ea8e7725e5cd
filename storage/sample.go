package storage

// SeedSampleData loads a small built-in question bank into a MemStore so the
// server can run matches without a database.
func SeedSampleData(m *MemStore) {
	m.SeedCategories([]CategoryRecord{
		{ID: "general", Name: "General Knowledge", Icon: "🧠"},
		{ID: "science", Name: "Science", Icon: "🔬"},
		{ID: "history", Name: "History", Icon: "🏺"},
		{ID: "geography", Name: "Geography", Icon: "🌍"},
	})

	m.SeedQuestions([]QuestionRecord{
		{
			Text:          "How many minutes are in a full day?",
			OptionA:       "1440", OptionB: "720", OptionC: "3600", OptionD: "1200",
			CorrectOption: "A",
			Explanation:   "24 hours times 60 minutes is 1440.",
			CategoryID:    "general", Category: "General Knowledge", Difficulty: 1,
		},
		{
			Text:          "Which planet is known as the Red Planet?",
			OptionA:       "Venus", OptionB: "Mars", OptionC: "Jupiter", OptionD: "Mercury",
			CorrectOption: "B",
			Explanation:   "Iron oxide on its surface gives Mars its color.",
			CategoryID:    "science", Category: "Science", Difficulty: 1,
		},
		{
			Text:          "What is the chemical symbol for gold?",
			OptionA:       "Gd", OptionB: "Go", OptionC: "Au", OptionD: "Ag",
			CorrectOption: "C",
			Explanation:   "Au comes from the Latin aurum.",
			CategoryID:    "science", Category: "Science", Difficulty: 2,
		},
		{
			Text:          "In which year did the Berlin Wall fall?",
			OptionA:       "1985", OptionB: "1991", OptionC: "1993", OptionD: "1989",
			CorrectOption: "D",
			Explanation:   "The wall was opened on 9 November 1989.",
			CategoryID:    "history", Category: "History", Difficulty: 2,
		},
		{
			Text:          "Which empire built Machu Picchu?",
			OptionA:       "Inca", OptionB: "Aztec", OptionC: "Maya", OptionD: "Olmec",
			CorrectOption: "A",
			Explanation:   "It was built as an Inca estate in the 15th century.",
			CategoryID:    "history", Category: "History", Difficulty: 2,
		},
		{
			Text:          "What is the capital of Australia?",
			OptionA:       "Sydney", OptionB: "Canberra", OptionC: "Melbourne", OptionD: "Perth",
			CorrectOption: "B",
			Explanation:   "Canberra was purpose-built as the capital in 1913.",
			CategoryID:    "geography", Category: "Geography", Difficulty: 2,
		},
		{
			Text:          "Which is the longest river in the world?",
			OptionA:       "Amazon", OptionB: "Yangtze", OptionC: "Nile", OptionD: "Mississippi",
			CorrectOption: "C",
			Explanation:   "The Nile runs about 6650 km.",
			CategoryID:    "geography", Category: "Geography", Difficulty: 1,
		},
		{
			Text:          "How many sides does a hexagon have?",
			OptionA:       "5", OptionB: "7", OptionC: "8", OptionD: "6",
			CorrectOption: "D",
			Explanation:   "Hex is Greek for six.",
			CategoryID:    "general", Category: "General Knowledge", Difficulty: 1,
		},
		{
			Text:          "What gas do plants absorb from the atmosphere?",
			OptionA:       "Carbon dioxide", OptionB: "Oxygen", OptionC: "Nitrogen", OptionD: "Hydrogen",
			CorrectOption: "A",
			Explanation:   "Photosynthesis consumes carbon dioxide.",
			CategoryID:    "science", Category: "Science", Difficulty: 1,
		},
		{
			Text:          "Who painted the Mona Lisa?",
			OptionA:       "Michelangelo", OptionB: "Leonardo da Vinci", OptionC: "Raphael", OptionD: "Donatello",
			CorrectOption: "B",
			Explanation:   "Leonardo worked on it from about 1503.",
			CategoryID:    "general", Category: "General Knowledge", Difficulty: 1,
		},
		{
			Text:          "Which country has the most time zones?",
			OptionA:       "Russia", OptionB: "USA", OptionC: "France", OptionD: "China",
			CorrectOption: "C",
			Explanation:   "Overseas territories give France twelve.",
			CategoryID:    "geography", Category: "Geography", Difficulty: 3,
		},
		{
			Text:          "What year did World War I begin?",
			OptionA:       "1912", OptionB: "1916", OptionC: "1918", OptionD: "1914",
			CorrectOption: "D",
			Explanation:   "It began in July 1914.",
			CategoryID:    "history", Category: "History", Difficulty: 1,
		},
	})
}
