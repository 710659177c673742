package enrichment

import (
	"fmt"
	"strings"

	"github.com/jordanlanch/leadflow/pkg/models"
)

const systemPrompt = `Du bist ein Experte für lokale Unternehmens-Akquise in Deutschland.
Du bewertest Unternehmen als potenzielle Kunden einer Digitalagentur (Webdesign, SEO, Social Media Marketing, Online-Präsenz).
Antworte ausschließlich mit einem JSON-Objekt.`

const answerFormat = `Antworte mit diesem JSON-Objekt:
{
  "zusammenfassung": "2-3 Sätze über das Unternehmen und seine Online-Präsenz",
  "zielgruppe": "Zielgruppe des Unternehmens",
  "onlineAuftritt": "Bewertung von Website und Social Media",
  "schwaechen": "Schwächen der Online-Präsenz",
  "chancen": "Chancen für eine Zusammenarbeit",
  "wettbewerb": "Einschätzung der lokalen Konkurrenz",
  "ansprache": "Empfohlene Ansprache für die erste E-Mail",
  "score": 0,
  "score_begruendung": "Kurze Begründung für den Score",
  "segment": "HOT|WARM|COLD|DISQUALIFIED",
  "tags": ["tag1", "tag2"]
}

SCORING-RICHTLINIEN:
- 80-100 (HOT): Klarer Bedarf, erreichbar, Budget wahrscheinlich
- 50-79 (WARM): Potenzial vorhanden, aber Unsicherheiten
- 20-49 (COLD): Wenig Potenzial oder schwer erreichbar
- 0-19 (DISQUALIFIED): Kein sinnvoller Lead`

// BuildPrompt renders the lead's firmographics and website text
func BuildPrompt(l *models.Lead) string {
	var b strings.Builder
	b.WriteString("LEAD-DATEN:\n")
	line := func(label, value, fallback string) {
		if strings.TrimSpace(value) == "" {
			value = fallback
		}
		fmt.Fprintf(&b, "- %s: %s\n", label, value)
	}

	line("Firma", l.Company, "Unbekannt")
	line("Branche", l.Industry, "Unbekannt")
	line("Größe", l.Size, "Unbekannt")
	line("PLZ/Ort", strings.TrimSpace(l.PostalCode+" "+l.City), "Unbekannt")
	line("Website", l.Website, "Keine")
	line("Domain", extractDomain(l.Website), "Keine")
	fmt.Fprintf(&b, "- Website-Qualität: %d/5\n", l.WebsiteQuality)
	line("E-Mail", l.Email, "Keine")
	line("Telefon", l.Phone, "Keine")
	line("Ansprechpartner", l.ContactPerson, "Unbekannt")
	line("Position", l.Position, "Unbekannt")
	fmt.Fprintf(&b, "- Social Media: %t\n", l.HasSocialMedia)
	line("Social Media Links", l.SocialMediaLinks, "Keine")
	line("Google-Bewertung", l.ReviewRating, "Keine")
	fmt.Fprintf(&b, "- Bisheriger Score: %d\n", l.Score)
	line("Notizen", truncate(l.Notes, 300), "")

	if text := strings.TrimSpace(l.WebsiteText); text != "" {
		b.WriteString("\nWEBSITE-TEXT:\n")
		b.WriteString(truncate(text, maxWebsiteText))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(answerFormat)
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
