package tcav

import "tcav-panel/pkg/api"

func fieldsOfKind(spec api.ModelSpec, kind string) []api.FieldSpec {
	var fields []api.FieldSpec
	for _, f := range spec.Output {
		if f.Kind == kind {
			fields = append(fields, f)
		}
	}
	return fields
}

// GradientLayers lists the output fields exposing gradients, in declaration order.
func GradientLayers(spec api.ModelSpec) []string {
	layers := []string{}
	for _, f := range fieldsOfKind(spec, api.KindGradients) {
		layers = append(layers, f.Name)
	}
	return layers
}

// PredictableClasses is the vocabulary of the first multiclass prediction head.
func PredictableClasses(spec api.ModelSpec) []string {
	preds := fieldsOfKind(spec, api.KindMulticlassPreds)
	if len(preds) == 0 {
		return []string{}
	}
	return append([]string{}, preds[0].Vocab...)
}

// ShouldDisplay reports whether the TCAV panel applies to a model: it needs
// embeddings, gradients and a multiclass prediction head.
func ShouldDisplay(spec api.ModelSpec) bool {
	return len(fieldsOfKind(spec, api.KindEmbeddings)) > 0 &&
		len(fieldsOfKind(spec, api.KindGradients)) > 0 &&
		len(fieldsOfKind(spec, api.KindMulticlassPreds)) > 0
}
