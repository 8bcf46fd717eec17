package session

import (
	"github.com/lehigh-university-libraries/retoucher/internal/prompts"
	"github.com/lehigh-university-libraries/retoucher/internal/providers"
)

// Tab is the active editing tool.
type Tab string

const (
	TabRetouch Tab = "retouch"
	TabCrop    Tab = "crop"
	TabAdjust  Tab = "adjust"
	TabFilter  Tab = "filter"
	TabExpand  Tab = "expand"
)

func (t Tab) Valid() bool {
	switch t {
	case TabRetouch, TabCrop, TabAdjust, TabFilter, TabExpand:
		return true
	}
	return false
}

// MaskCompatible reports whether the tab accepts a painted mask.
func (t Tab) MaskCompatible() bool {
	return t == TabAdjust || t == TabFilter
}

// PromptCategory is the prompt history the tab records into.
func (t Tab) PromptCategory() (prompts.Category, bool) {
	switch t {
	case TabRetouch:
		return prompts.Edit, true
	case TabAdjust:
		return prompts.Adjust, true
	case TabFilter:
		return prompts.Filter, true
	}
	return "", false
}

// Kind is the edit the tab performs in a batch. Tabs without a batch
// equivalent fall back to adjust.
func (t Tab) Kind() providers.Kind {
	switch t {
	case TabRetouch:
		return providers.KindRetouch
	case TabFilter:
		return providers.KindFilter
	}
	return providers.KindAdjust
}
