package typeme

// RootName is the name of the root of the built-in taxonomy.
const RootName = "phoneme"

// Phonetic returns the built-in ARPABET taxonomy:
//
//	phoneme
//	├── vowels      front{IY IH EH AE} mid{AA ER AH AO} back{UW UH OW}
//	├── diphthongs  AY OY AW EY
//	├── semivowels  liquids{W L} glides{R Y}
//	└── consonants
//	    ├── nasals      M N NG
//	    ├── stops       voiced stops{B D G} unvoiced stops{P T K}
//	    ├── fricatives  voiced_fricatives{V TH Z ZH} unvoiced_fricatives{F S SH}
//	    ├── whisper     H HH
//	    └── affricates  JH CH
//
// The consonant classes are declared at the top level and then adopted under
// "consonants", which exercises the same reparenting path as custom
// taxonomies.
func Phonetic() *Tree {
	t := New(RootName)
	must := func(ids []ID, err error) []ID {
		if err != nil {
			panic(err)
		}
		return ids
	}

	top := must(t.Declare(t.Root(), "vowels", "diphthongs", "semivowels", "consonants"))
	vowels, diphthongs, semivowels, consonants := top[0], top[1], top[2], top[3]

	v := must(t.Declare(vowels, "front", "mid", "back"))
	sv := must(t.Declare(semivowels, "liquids", "glides"))
	classes := must(t.Declare(t.Root(), "nasals", "stops", "fricatives", "whisper", "affricates"))
	nasals, stops, fricatives, whisper, affricates := classes[0], classes[1], classes[2], classes[3], classes[4]
	st := must(t.Declare(stops, "voiced stops", "unvoiced stops"))
	fr := must(t.Declare(fricatives, "voiced_fricatives", "unvoiced_fricatives"))

	must(t.Declare(v[0], "IY", "IH", "EH", "AE"))
	must(t.Declare(v[1], "AA", "ER", "AH", "AO"))
	must(t.Declare(v[2], "UW", "UH", "OW"))
	must(t.Declare(diphthongs, "AY", "OY", "AW", "EY"))
	must(t.Declare(sv[0], "W", "L"))
	must(t.Declare(sv[1], "R", "Y"))
	must(t.Declare(nasals, "M", "N", "NG"))
	must(t.Declare(st[0], "B", "D", "G"))
	must(t.Declare(st[1], "P", "T", "K"))
	must(t.Declare(fr[0], "V", "TH", "Z", "ZH"))
	must(t.Declare(fr[1], "F", "S", "SH"))
	must(t.Declare(whisper, "H", "HH"))
	must(t.Declare(affricates, "JH", "CH"))

	if err := t.Adopt(consonants, classes...); err != nil {
		panic(err)
	}
	return t
}
