package classifier

// Bins is K: the number of leading FFT power-spectrum bins the classifier's
// linear model reads.
const Bins = 45

// Intercept is the fixed decision-boundary offset of the linear classifier.
const Intercept = -4.204528957411403

// Weights holds one coefficient per retained power-spectrum bin (index 0 is
// DC), the vector the closed-loop policy scores against. The values are a
// synthetic, smoothly varying placeholder of the right length; they are not
// the coefficients of a trained model. Changing them changes what the
// classifier detects.
var Weights = [Bins]float64{
	0.061187374982759,
	0.043442834809291,
	0.022741951642422,
	0.001311326924026,
	-0.018669300740733,
	-0.035271106021012,
	-0.046986642751055,
	-0.052852372627667,
	-0.052514093592006,
	-0.046231899335396,
	-0.034827129092594,
	-0.019579080673475,
	-0.002083587211283,
	0.015911457619557,
	0.032677114013031,
	0.046664625856062,
	0.056642248058201,
	0.061796044731190,
	0.061786965246351,
	0.056760967287619,
	0.047313503227177,
	0.034413888838481,
	0.019298555077319,
	0.003344653780389,
	-0.012063235133853,
	-0.025660525269805,
	-0.036412577842472,
	-0.043597792636316,
	-0.046857412201825,
	-0.046209043150225,
	-0.042024438443198,
	-0.034975400387066,
	-0.025954456283555,
	-0.015978991626142,
	-0.006088646195339,
	0.002754073892737,
	0.009750806495797,
	0.014334414910706,
	0.016210828139170,
	0.015372954536446,
	0.012086733582711,
	0.006852000405221,
	0.000343069791907,
	-0.006664389792344,
	-0.013372654323685,
}
