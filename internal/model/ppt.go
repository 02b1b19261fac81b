package model

// DesignSpec is the deck-wide visual contract. It is produced once per ppt
// job by the design coordinator and read by every page agent and the PPTX
// renderer.
type DesignSpec struct {
	PrimaryColor       string   `json:"primaryColor"`
	SecondaryColor     string   `json:"secondaryColor"`
	AccentColor        string   `json:"accentColor"`
	BackgroundColor    string   `json:"backgroundColor"`
	TextColor          string   `json:"textColor"`
	TextSecondaryColor string   `json:"textSecondaryColor"`
	TitleFontSize      int      `json:"titleFontSize"`   // px, 20-80
	ContentFontSize    int      `json:"contentFontSize"` // px, 14-40
	FontFamily         string   `json:"fontFamily"`
	LayoutStyle        string   `json:"layoutStyle"`
	Spacing            string   `json:"spacing"`
	BorderRadius       string   `json:"borderRadius"`
	ChartColors        []string `json:"chartColors"` // exactly 5 entries
	UseShadows         bool     `json:"useShadows"`
	UseGradients       bool     `json:"useGradients"`
	AnimationStyle     string   `json:"animationStyle"`
}

// Slide is one generated page of the deck.
type Slide struct {
	SlideNumber int      `json:"slideNumber"`
	PageType    PageType `json:"pageType"`
	Topic       string   `json:"topic"`
	KeyPoints   []string `json:"keyPoints,omitempty"`
	HasChart    bool     `json:"hasChart,omitempty"`
	HTMLContent string   `json:"htmlContent"`
	SpeechNotes string   `json:"speechNotes,omitempty"`
}

// PageSpec is the input to a page agent for one slide.
type PageSpec struct {
	SlideNumber int      `json:"slideNumber"`
	PageType    PageType `json:"pageType"`
	Topic       string   `json:"topic"`
	KeyPoints   []string `json:"keyPoints,omitempty"`
	HasChart    bool     `json:"hasChart,omitempty"`
}

// GlobalContext is the shared, immutable deck context every page agent sees.
type GlobalContext struct {
	Title       string     `json:"title"`
	Style       PPTStyle   `json:"style"`
	Design      DesignSpec `json:"design"`
	TotalSlides int        `json:"totalSlides"`
	SpeechScene string     `json:"speechScene,omitempty"`
}

// PPTMetadata describes a finished deck.
type PPTMetadata struct {
	SlideCount     int      `json:"slideCount"`
	Style          PPTStyle `json:"style"`
	DesignFallback bool     `json:"designFallback,omitempty"`
}

// PPTDocument is the full deck as persisted to PPT_DATA.json.
type PPTDocument struct {
	Title       string      `json:"title"`
	Slides      []Slide     `json:"slides"`
	Colors      DesignSpec  `json:"colors"`
	Metadata    PPTMetadata `json:"metadata"`
	HTMLContent string      `json:"htmlContent,omitempty"`
	SpeechNotes []string    `json:"speechNotes,omitempty"` // one entry per slide, aligned by index
}
