/*
 *	Copyright 2024 The Learning Visual Embeddings Authors
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package movingmnist

import "image"

// Montage renders the first numVideos videos as a grid image, one video per
// row with its first numFrames frames side by side. Counts beyond the dataset
// are clamped.
func (s *Sequences) Montage(numVideos, numFrames int) image.Image {
	numVideos = min(numVideos, s.NumVideos)
	numFrames = min(numFrames, s.SeqLen)
	img := image.NewGray(image.Rect(0, 0, numFrames*s.Width, numVideos*s.Height))
	for video := 0; video < numVideos; video++ {
		for frame := 0; frame < numFrames; frame++ {
			src := s.Frame(video, frame)
			for row := 0; row < s.Height; row++ {
				dst := (video*s.Height+row)*img.Stride + frame*s.Width
				copy(img.Pix[dst:dst+s.Width], src[row*s.Width:(row+1)*s.Width])
			}
		}
	}
	return img
}
