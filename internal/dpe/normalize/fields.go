package normalize

// Candidate source keys per canonical field, in resolution order. The
// upstream dataset went through three generations with different casing and
// naming; the first key holding a non-null value wins.
var (
	idKeys           = []string{"n_dpe", "N_DPE", "numero_dpe"}
	dateKeys         = []string{"date_etablissement_dpe", "Date_établissement_DPE"}
	dpeGradeKeys     = []string{"etiquette_dpe", "Etiquette_DPE", "classe_consommation_energie"}
	gesGradeKeys     = []string{"etiquette_ges", "Etiquette_GES", "classe_estimation_ges"}
	energyKeys       = []string{"conso_kwhe_m2_an", "consommation_energie", "conso_5_usages_par_m2_ep"}
	emissionKeys     = []string{"emission_ges_kg_co2_m2_an", "estimation_ges", "emission_ges_5_usages_par_m2"}
	addressKeys      = []string{"adresse_ban", "Adresse_brut", "adresse_brute"}
	municipalityKeys = []string{"nom_commune_ban", "Commune_brut", "nom_commune"}
	postalCodeKeys   = []string{"code_postal_ban", "Code_postal_(BAN)", "code_postal_brut"}
	yearKeys         = []string{"annee_construction", "Année_construction"}
	surfaceKeys      = []string{"surface_habitable_logement", "surface_thermique"}
	costKeys         = []string{"cout_total_5_usages", "Coût_total_5_usages"}
	buildingTypeKeys = []string{"type_batiment", "type_logement"}
	heatingKeys      = []string{"type_generateur_chauffage_principal", "type_installation_chauffage"}
	latitudeKeys     = []string{"latitude", "lat_ban"}
	longitudeKeys    = []string{"longitude", "lon_ban"}
)
