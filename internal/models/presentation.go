package models

import (
	"fmt"
	"strconv"
)

// Fallback lines shown on slides whose list came back empty from Spotify.
const (
	FallbackSongs      = "None (Spotify was not used during the time interval selected)"
	FallbackRestricted = "Unfortunately, due to stricter spotify API restrictions, we can no longer show this :("
	FallbackCommentary = "No description is available for this wrap."
)

// SlideKind identifies what a slide renders.
type SlideKind int

const (
	SlideIntro SlideKind = iota
	SlideTopSongs
	SlideTopArtists
	SlideTopGenres
	SlideDistinctArtists
	SlideGenreCount
	SlideCommentary
	SlideSummary
)

// SlideCount is the number of slides in every presentation.
const SlideCount = 8

// Template returns the template name used to render the slide.
func (k SlideKind) Template() string {
	if k == SlideIntro {
		return "wrap_base"
	}
	return "wrap" + strconv.Itoa(int(k))
}

// Slide is one page of a [Presentation].
type Slide struct {
	Page    int
	Kind    SlideKind
	Title   string
	Items   []string
	Count   int
	Text    string
	HasPrev bool
	HasNext bool
	Prev    int
	Next    int
}

// Template returns the template name used to render the slide.
func (s Slide) Template() string { return s.Kind.Template() }

// Presentation pages a stored [Wrap] into [SlideCount] slides for one language.
type Presentation struct {
	Wrap     *Wrap
	Language Language
	slides   []Slide
}

// NewPresentation builds the slides for w. Descriptions missing in lang fall back to English.
func NewPresentation(w *Wrap, lang Language) *Presentation {
	stats := w.Stats()
	commentary := w.Description(lang)
	if commentary == "" {
		commentary = w.Description(English)
	}
	if commentary == "" {
		commentary = FallbackCommentary
	}

	songs := orFallback(stats.TopSongs, FallbackSongs)
	artists := orFallback(stats.TopArtists, FallbackRestricted)
	genres := orFallback(stats.TopGenres, FallbackRestricted)

	slides := []Slide{
		{Kind: SlideIntro, Title: fmt.Sprintf("Your %s Wrapped", w.Length())},
		{Kind: SlideTopSongs, Title: "Your Top Songs", Items: songs},
		{Kind: SlideTopArtists, Title: "Your Top Artists", Items: artists},
		{Kind: SlideTopGenres, Title: "Your Top Genres", Items: genres},
		{Kind: SlideDistinctArtists, Title: "Distinct Artists", Count: stats.NumDistinctArtists},
		{Kind: SlideGenreCount, Title: "Genres Explored", Count: stats.NumGenres},
		{Kind: SlideCommentary, Title: "What Your Music Says About You", Text: commentary},
		{Kind: SlideSummary, Title: "Summary", Items: summary(songs, artists, genres)},
	}

	for i := range slides {
		slides[i].Page = i
		slides[i].HasPrev = i > 0
		slides[i].HasNext = i < len(slides)-1
		slides[i].Prev = i - 1
		slides[i].Next = i + 1
	}

	return &Presentation{Wrap: w, Language: lang, slides: slides}
}

func orFallback(items []string, fallback string) []string {
	if len(items) == 0 {
		return []string{fallback}
	}
	return items
}

func summary(songs, artists, genres []string) []string {
	return []string{
		"Top song: " + songs[0],
		"Top artist: " + artists[0],
		"Top genre: " + genres[0],
	}
}

// Len returns the number of slides.
func (p *Presentation) Len() int { return len(p.slides) }

// Slides returns all slides in order.
func (p *Presentation) Slides() []Slide { return p.slides }

// Slide returns the slide at page, or [ErrSlideOutOfRange].
func (p *Presentation) Slide(page int) (Slide, error) {
	if page < 0 || page >= len(p.slides) {
		return Slide{}, fmt.Errorf("%w: page %d not in [0, %d)", ErrSlideOutOfRange, page, len(p.slides))
	}
	return p.slides[page], nil
}
