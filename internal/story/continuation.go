package story

import "fmt"

// Continue derives the request for the next episode from a finished run. The new prompt carries
// the original prompt, the narration of the last scene and the instruction to continue at the
// same length; every other field is copied unchanged.
func Continue(prev GenerationRequest, assets *GeneratedAssets) (GenerationRequest, error) {
	last, err := assets.LastScene()
	if err != nil {
		return GenerationRequest{}, err
	}

	next := prev
	next.Prompt = fmt.Sprintf(
		"The story so far: \"%s\". The last scene was: \"%s\". Please write a compelling continuation of this story for a new video of approximately %s.",
		prev.Prompt, last.Narration, prev.Length,
	)
	return next, nil
}
