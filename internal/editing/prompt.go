package editing

import (
	"fmt"

	"github.com/lehigh-university-libraries/retoucher/internal/models"
	"github.com/lehigh-university-libraries/retoucher/internal/providers"
)

const defaultExpandPrompt = "Extend the scene naturally."

// buildPrompt wraps the user's instruction with the framing each kind of edit
// needs so the model returns a whole image and leaves the rest untouched.
func buildPrompt(kind providers.Kind, prompt string, region *models.Region, masked bool) string {
	switch kind {
	case providers.KindRetouch:
		area := "the whole image"
		if region != nil {
			area = fmt.Sprintf("only the rectangle with top-left corner (%d, %d), %d pixels wide and %d pixels tall",
				region.X, region.Y, region.Width, region.Height)
		}
		return fmt.Sprintf(`You are an expert photo retoucher.

Edit %s according to this instruction: %s

Keep everything outside that area pixel-identical. Return the complete edited image at the same size as the input.`,
			area, prompt)

	case providers.KindFilter:
		return fmt.Sprintf(`You are an expert photo editor applying a stylistic filter.

Apply this filter: %s

%s Preserve the composition, subjects and framing. Return the complete image at the same size as the input.`,
			prompt, scope(masked))

	case providers.KindAdjust:
		return fmt.Sprintf(`You are an expert photo editor making a tonal adjustment.

Adjust the image as follows: %s

%s Do not add, remove or move any content. Return the complete image at the same size as the input.`,
			prompt, scope(masked))

	case providers.KindExpand:
		if prompt == "" {
			prompt = defaultExpandPrompt
		}
		return fmt.Sprintf(`You are an expert at outpainting photographs.

The input image has transparent areas around the original picture. Fill ONLY the transparent areas so they continue the existing scene seamlessly. Do not modify any non-transparent pixel.

Guidance for the new content: %s

Return the complete image at the same size as the input with no transparency left.`,
			prompt)
	}
	return prompt
}

func scope(masked bool) string {
	if masked {
		return "A black and white mask accompanies the image: change only the white areas and leave the black areas exactly as they are."
	}
	return "Apply the change to the whole image."
}
