package pdf

import "strings"

// PDF text extraction frequently loses the fi/fl/ff ligature glyphs,
// leaving a space where the ligature was. The replacer repairs the
// common English casualties.
var ligatureReplacer = strings.NewReplacer(
	// fi
	"speci c", "specific",
	"signi cant", "significant",
	"identi ed", "identified",
	"identi cation", "identification",
	"certi cate", "certificate",
	"bene t", "benefit",
	"bene ts", "benefits",
	"ef cient", "efficient",
	"ef ciency", "efficiency",
	"suf cient", "sufficient",
	"de ned", "defined",
	"de nition", "definition",
	"con rm", "confirm",
	"con rmed", "confirmed",
	"con gur", "configur",
	"modi ed", "modified",
	"modi cation", "modification",
	"veri ed", "verified",
	"veri cation", "verification",
	"classi ed", "classified",
	"classi cation", "classification",
	"quali ed", "qualified",
	"simpli ed", "simplified",
	"noti ed", "notified",
	"noti cation", "notification",
	"justi ed", "justified",
	"speci ed", "specified",
	" rst", "first",
	" nal", "final",
	" nally", "finally",
	" nding", "finding",
	" ndings", "findings",
	" le", "file",
	" les", "files",
	" lter", "filter",
	" eld", "field",
	" elds", "fields",
	" gure", "figure",
	" gures", "figures",
	" nite", "finite",
	" nish", "finish",
	" xed", "fixed",
	// fl
	"in uence", "influence",
	"in uenced", "influenced",
	"con ict", "conflict",
	"con icts", "conflicts",
	"re ect", "reflect",
	"re ected", "reflected",
	"re ection", "reflection",
	" ow", "flow",
	" ows", "flows",
	" uid", "fluid",
	" ag", "flag",
	" ags", "flags",
	" oor", "floor",
	" ight", "flight",
	" exible", "flexible",
	" exibility", "flexibility",
	// ff
	"e ect", "effect",
	"e ects", "effects",
	"e ective", "effective",
	"e ectively", "effectively",
	"e ort", "effort",
	"e orts", "efforts",
	"di erent", "different",
	"di erence", "difference",
	"di erences", "differences",
	"di cult", "difficult",
	"di culty", "difficulty",
	"o er", "offer",
	"o ers", "offers",
	"o ered", "offered",
	"a ect", "affect",
	"a ects", "affects",
	"a ected", "affected",
	"a ord", "afford",
	"su er", "suffer",
	"su ering", "suffering",
	"co ee", "coffee",
)

// repairLigatures fixes common ligature damage in extracted text.
func repairLigatures(text string) string {
	return ligatureReplacer.Replace(text)
}
