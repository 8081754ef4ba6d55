package room

import (
	"crypto/rand"
	"math/big"
	"strings"
)

var adjectives = []string{
	"tiny", "happy", "sleepy", "fluffy", "sparkly", "cheery", "silly", "jolly", "cozy", "shiny",
	"golden", "silver", "crimson", "emerald", "purple", "bright", "gentle", "brave", "calm", "swift",
	"silent", "bouncy", "fuzzy", "plucky", "merry", "peppy",
}

var animals = []string{
	"kitten", "puppy", "bunny", "panda", "koala", "fox", "otter", "hedgehog", "squirrel", "hamster",
	"fawn", "lamb", "raccoon", "beaver", "seahorse", "dolphin", "narwhal", "penguin", "flamingo",
	"pelican", "sparrow", "robin", "toucan", "parrot", "dragon", "unicorn", "griffin", "phoenix",
}

var things = []string{
	"pancake", "waffle", "ramen", "taco", "dumpling", "noodle", "muffin", "biscuit", "toffee", "cocoa",
	"sunbeam", "stardust", "pebble", "lantern", "puddle", "comet", "orbit", "nebula", "canyon", "meadow",
	"willow", "ember", "maple", "marble", "button", "thimble", "rocket", "breeze",
}

// RandomName returns a memorable room name such as "sleepy-otter-ramen".
func RandomName() string {
	words := make([]string, 0, 3)
	for _, list := range [][]string{adjectives, animals, things} {
		words = append(words, list[randomIndex(len(list))])
	}
	return strings.Join(words, "-")
}

// FreshName returns a random name of a room that currently has no members.
func (r *Registry) FreshName() string {
	for {
		name := RandomName()
		if r.MemberCount(name) == 0 {
			return name
		}
	}
}

func randomIndex(size int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(size)))
	if err != nil {
		panic("room: reading random bytes: " + err.Error())
	}
	return int(n.Int64())
}
