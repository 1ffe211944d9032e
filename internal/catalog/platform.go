package catalog

// platformAliases maps normalized platform spellings to the normalized
// canonical platform name.
var platformAliases = map[string]string{
	// Nintendo
	"nintendo switch":               "switch",
	"famicom":                       "nes",
	"nintendo entertainment system": "nes",
	"super famicom":                 "snes",
	"super nintendo":                "snes",
	"nintendo 64":                   "n64",
	"nintendo gamecube":             "gamecube",
	"gcn":                           "gamecube",
	"nintendo wii":                  "wii",
	"nintendo wii u":                "wii u",
	"gba":                           "game boy advance",
	"gbc":                           "game boy color",
	"gb":                            "game boy",
	"ds":                            "nintendo ds",
	"nds":                           "nintendo ds",
	"3ds":                           "nintendo 3ds",
	"new nintendo 3ds":              "nintendo 3ds",

	// PlayStation
	"playstation":          "ps1",
	"playstation 1":        "ps1",
	"psx":                  "ps1",
	"psone":                "ps1",
	"playstation 2":        "ps2",
	"playstation 3":        "ps3",
	"playstation 4":        "ps4",
	"playstation 5":        "ps5",
	"playstation portable": "psp",
	"playstation vita":     "ps vita",
	"vita":                 "ps vita",
	"playstation vr":       "psvr",
	"playstation vr2":      "psvr2",
	"ps vr":                "psvr",
	"ps vr2":               "psvr2",

	// Xbox
	"xbox series x": "xbox series x s",
	"xbox series s": "xbox series x s",
	"xbox series":   "xbox series x s",
	"xsx":           "xbox series x s",
	"xbone":         "xbox one",

	// Sega
	"sega genesis":       "genesis",
	"sega mega drive":    "mega drive",
	"sega master system": "master system",
	"sega saturn":        "saturn",
	"sega dreamcast":     "dreamcast",
	"sega game gear":     "game gear",
	"sega 32x":           "32x",

	// PC
	"windows":           "pc",
	"microsoft windows": "pc",
	"steam":             "pc",
	"macos":             "mac",
	"macintosh":         "mac",
	"apple mac":         "mac",

	// VR
	"oculus quest":   "meta quest",
	"oculus quest 2": "meta quest",
	"meta quest 2":   "meta quest",
	"meta quest 3":   "meta quest",
	"quest":          "meta quest",
	"quest 2":        "meta quest",
	"quest 3":        "meta quest",
	"steamvr":        "valve index",

	// Retro
	"turbografx cd": "turbografx 16",
	"pc engine cd":  "pc engine",
	"neogeo":        "neo geo",
	"neo geo aes":   "neo geo",
	"neo geo mvs":   "neo geo",
	"c64":           "commodore 64",
}

// NormalizePlatform folds a platform name and resolves known aliases so
// "Super Famicom" and "SNES" share one identity.
func NormalizePlatform(platform string) string {
	n := NormalizeText(platform)
	if canonical, ok := platformAliases[n]; ok {
		return canonical
	}
	return n
}
