/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"sort"
)

// wordCategories is the static word bank. Every round draws its secret word
// from the category selected by the host.
var wordCategories = map[string][]string{
	"animals": {
		"elephant", "giraffe", "penguin", "dolphin", "kangaroo",
		"octopus", "butterfly", "crocodile", "peacock", "koala",
		"flamingo", "cheetah", "panda", "gorilla", "hedgehog",
	},
	"food": {
		"pizza", "sushi", "hamburger", "tacos", "pasta",
		"chocolate", "pancakes", "ice cream", "sandwich", "curry",
		"lasagna", "burrito", "ramen", "croissant", "cheesecake",
	},
	"movies": {
		"titanic", "avatar", "inception", "frozen", "jaws",
		"matrix", "gladiator", "up", "psycho", "alien",
		"rocky", "coco", "shrek", "joker", "parasite",
	},
	"countries": {
		"japan", "brazil", "egypt", "australia", "canada",
		"italy", "mexico", "india", "france", "germany",
		"spain", "china", "greece", "sweden", "argentina",
	},
	"occupations": {
		"firefighter", "astronaut", "chef", "doctor", "pilot",
		"teacher", "detective", "architect", "photographer", "scientist",
		"musician", "journalist", "veterinarian", "lawyer", "programmer",
	},
	"sports": {
		"basketball", "tennis", "swimming", "skateboarding", "golf",
		"boxing", "surfing", "volleyball", "gymnastics", "skiing",
		"cricket", "rugby", "cycling", "archery", "fencing",
	},
}

const defaultCategory = "animals"

// randomWord draws a word uniformly from the given category, or returns ""
// for an unknown category.
func randomWord(category string) string {
	words, ok := wordCategories[category]
	if !ok || len(words) == 0 {
		return ""
	}
	return words[randomIndex(len(words))]
}

func getCategories() []string {
	categories := make([]string, 0, len(wordCategories))
	for category := range wordCategories {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

func validCategory(category string) bool {
	_, ok := wordCategories[category]
	return ok
}

// randomIndex returns a uniform index in [0, n) using crypto/rand,
// rejection-sampled to avoid modulo bias. n is a player or word count, so
// a 32-bit draw always leaves room to accept.
func randomIndex(n int) int {
	if n <= 1 {
		return 0
	}

	limit := math.MaxUint32 / uint32(n) * uint32(n)
	for {
		var b [4]byte
		if _, err := rand.Read(b[:]); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		v := binary.BigEndian.Uint32(b[:])
		if v < limit {
			return int(v % uint32(n))
		}
	}
}
