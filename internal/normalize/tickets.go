package normalize

// TicketSchema is the rule set for the windowed ticket search pipeline.
// Standard fields keep their API names; custom fields promote to the columns
// the destination table was provisioned with; the composite via and
// satisfaction_rating objects split into their own columns (the raw
// satisfaction object is also kept, JSON-serialized, for auditing).
//
// Raw fields deliberately dropped: custom_fields, fields, followup_ids,
// due_at, collaborator_ids, follower_ids, email_cc_ids, forum_topic_id,
// problem_id.
func TicketSchema(table string) *Schema {
	return &Schema{
		Table: table,
		Columns: []Column{
			{Name: "url", Kind: KindString},
			{Name: "id", Kind: KindInt},
			{Name: "external_id", Kind: KindString},
			{Name: "via", Kind: KindString},
			{Name: "created_at", Kind: KindTimestamp},
			{Name: "updated_at", Kind: KindTimestamp},
			{Name: "generated_timestamp", Kind: KindInt},
			{Name: "type", Kind: KindString},
			{Name: "subject", Kind: KindString},
			{Name: "raw_subject", Kind: KindString},
			{Name: "description", Kind: KindString},
			{Name: "priority", Kind: KindString},
			{Name: "status", Kind: KindString},
			{Name: "recipient", Kind: KindString},
			{Name: "requester_id", Kind: KindInt},
			{Name: "submitter_id", Kind: KindInt},
			{Name: "assignee_id", Kind: KindInt},
			{Name: "organization_id", Kind: KindInt},
			{Name: "group_id", Kind: KindInt},
			{Name: "has_incidents", Kind: KindBool},
			{Name: "is_public", Kind: KindBool},
			{Name: "tags", Kind: KindString},
			{Name: "satisfaction_rating", Kind: KindString},
			{Name: "sharing_agreement_ids", Kind: KindString},
			{Name: "custom_status_id", Kind: KindInt},
			{Name: "encoded_id", Kind: KindString},
			{Name: "ticket_form_id", Kind: KindInt},
			{Name: "brand_id", Kind: KindInt},
			{Name: "allow_channelback", Kind: KindBool},
			{Name: "allow_attachments", Kind: KindBool},
			{Name: "from_messaging_channel", Kind: KindBool},
			{Name: "result_type", Kind: KindString},

			// Promoted custom fields.
			{Name: "Area_Retorno", Kind: KindString},
			{Name: "Data_de_Envio_Area_Responsavel", Kind: KindString},
			{Name: "Previsao_de_Retorno_Area_Responsavel", Kind: KindString},
			{Name: "Assunto_do_Email", Kind: KindString},
			{Name: "Canal_de_Entrada", Kind: KindString},
			{Name: "Duvida", Kind: KindString},
			{Name: "Solicitacao", Kind: KindString},
			{Name: "Problema", Kind: KindString},
			{Name: "Outros", Kind: KindString},
			{Name: "Transportadora", Kind: KindString},
			{Name: "Produto", Kind: KindString},
			{Name: "Numero_do_Pedido", Kind: KindString},
			{Name: "SKU_dos_Produtos", Kind: KindString},
			{Name: "Numero_da_NF", Kind: KindString},
			{Name: "Estorno_Valor", Kind: KindString},
			{Name: "Tipo_de_Estorno", Kind: KindString},
			{Name: "Atendente", Kind: KindString},
			{Name: "Nome_Titular_do_Pedido", Kind: KindString},
			{Name: "Estorno_Causa_Raiz", Kind: KindString},
			{Name: "Estorno_Tipo_de_Problema", Kind: KindString},
			{Name: "Estorno_Tipo_de_Pagamento", Kind: KindString},
			{Name: "Status_da_Coleta", Kind: KindString},
			{Name: "CD_Troca_e_Acionamento_de_Garantia", Kind: KindString},
			{Name: "Coleta_Solicitada_Mais_de_uma_Vez", Kind: KindString},
			{Name: "Caso_Resolvido_no_Atendimento_Anterior", Kind: KindString},
			{Name: "Numero_da_Loja", Kind: KindString},
			{Name: "CD_Outras_Demandas", Kind: KindString},
			{Name: "Replica", Kind: KindString},
			{Name: "Sentimento", Kind: KindString},
			{Name: "Status_de_Assistencia_Tecnica", Kind: KindString},
			{Name: "Plano_de_Acao_OS_Vencidas", Kind: KindString},
			{Name: "Prazo_1_Cobranca", Kind: KindString},
			{Name: "CD_Devolucao_e_Voucher", Kind: KindString},
			{Name: "Loja_Fisica_ou_Loja_Virtual", Kind: KindString},
			{Name: "Etapas_de_Coleta", Kind: KindString},
			{Name: "Avaliacao_no_RA", Kind: KindString},
			{Name: "Nota_da_Avaliacao", Kind: KindString},
			{Name: "Demanda", Kind: KindString},
			{Name: "Plano_de_Acao_Insatisfacao_Resultado_de_OS", Kind: KindString},
			{Name: "Numero_da_OS", Kind: KindString},
			{Name: "Cliente_Reincidente", Kind: KindString},
			{Name: "Numero_da_NFD", Kind: KindString},
			{Name: "Atribuido_Para", Kind: KindString},

			// Promoted via sub-fields.
			{Name: "via_channel", Kind: KindString},
			{Name: "via_from_name", Kind: KindString},
			{Name: "via_from_address", Kind: KindString},
			{Name: "via_from_ticket_id", Kind: KindInt},
			{Name: "via_from_subject", Kind: KindString},
			{Name: "via_to_name", Kind: KindString},
			{Name: "via_to_address", Kind: KindString},
			{Name: "via_rel", Kind: KindString},

			// Promoted satisfaction sub-fields.
			{Name: "satisfaction_score", Kind: KindString},
			{Name: "satisfaction_comment", Kind: KindString},
			{Name: "satisfaction_reason", Kind: KindString},
			{Name: "satisfaction_reason_id", Kind: KindInt},
			{Name: "satisfaction_id", Kind: KindString},
		},
		Rename: map[string]string{
			"url":                    "url",
			"id":                     "id",
			"external_id":            "external_id",
			"via":                    "via",
			"created_at":             "created_at",
			"updated_at":             "updated_at",
			"generated_timestamp":    "generated_timestamp",
			"type":                   "type",
			"subject":                "subject",
			"raw_subject":            "raw_subject",
			"description":            "description",
			"priority":               "priority",
			"status":                 "status",
			"recipient":              "recipient",
			"requester_id":           "requester_id",
			"submitter_id":           "submitter_id",
			"assignee_id":            "assignee_id",
			"organization_id":        "organization_id",
			"group_id":               "group_id",
			"has_incidents":          "has_incidents",
			"is_public":              "is_public",
			"tags":                   "tags",
			"satisfaction_rating":    "satisfaction_rating",
			"sharing_agreement_ids":  "sharing_agreement_ids",
			"custom_status_id":       "custom_status_id",
			"encoded_id":             "encoded_id",
			"ticket_form_id":         "ticket_form_id",
			"brand_id":               "brand_id",
			"allow_channelback":      "allow_channelback",
			"allow_attachments":      "allow_attachments",
			"from_messaging_channel": "from_messaging_channel",
			"result_type":            "result_type",
		},
		Extract: []Extraction{
			{Column: "via_channel", From: "via", Path: []string{"channel"}},
			{Column: "via_from_name", From: "via", Path: []string{"source", "from", "name"}},
			{Column: "via_from_address", From: "via", Path: []string{"source", "from", "address"}},
			{Column: "via_from_ticket_id", From: "via", Path: []string{"source", "from", "ticket_id"}},
			{Column: "via_from_subject", From: "via", Path: []string{"source", "from", "subject"}},
			{Column: "via_to_name", From: "via", Path: []string{"source", "to", "name"}},
			{Column: "via_to_address", From: "via", Path: []string{"source", "to", "address"}},
			{Column: "via_rel", From: "via", Path: []string{"source", "rel"}},
			{Column: "satisfaction_score", From: "satisfaction_rating", Path: []string{"score"}},
			{Column: "satisfaction_comment", From: "satisfaction_rating", Path: []string{"comment"}},
			{Column: "satisfaction_reason", From: "satisfaction_rating", Path: []string{"reason"}},
			{Column: "satisfaction_reason_id", From: "satisfaction_rating", Path: []string{"reason_id"}},
			{Column: "satisfaction_id", From: "satisfaction_rating", Path: []string{"id"}},
		},
		CustomFields: map[string]string{
			"20481751634964": "Area_Retorno",
			"23450471389460": "Data_de_Envio_Area_Responsavel",
			"23450335909780": "Previsao_de_Retorno_Area_Responsavel",
			"7896616478612":  "Assunto_do_Email",
			"360041469032":   "Canal_de_Entrada",
			"360041468692":   "Duvida",
			"360041432051":   "Solicitacao",
			"360041431951":   "Problema",
			"360041432091":   "Outros",
			"22541325":       "Transportadora",
			"8225162131348":  "Produto",
			"360041040172":   "Numero_do_Pedido",
			"360030577731":   "SKU_dos_Produtos",
			"360040274491":   "Numero_da_NF",
			"23507539076884": "Estorno_Valor",
			"23465090667540": "Tipo_de_Estorno",
			"24157626991892": "Atendente",
			"360030496932":   "Nome_Titular_do_Pedido",
			"23555735385236": "Estorno_Causa_Raiz",
			"23555716189844": "Estorno_Tipo_de_Problema",
			"25219880343316": "Estorno_Tipo_de_Pagamento",
			"27112346684948": "Status_da_Coleta",
			"25783014985492": "CD_Troca_e_Acionamento_de_Garantia",
			"27112338364436": "Coleta_Solicitada_Mais_de_uma_Vez",
			"27265259806228": "Caso_Resolvido_no_Atendimento_Anterior",
			"26678660208916": "Numero_da_Loja",
			"25907732988436": "CD_Outras_Demandas",
			"27112064079636": "Replica",
			"28405635340308": "Sentimento",
			"26241507056916": "Status_de_Assistencia_Tecnica",
			"26256563363348": "Plano_de_Acao_OS_Vencidas",
			"26241374621588": "Prazo_1_Cobranca",
			"25808063108756": "CD_Devolucao_e_Voucher",
			"27112048306068": "Loja_Fisica_ou_Loja_Virtual",
			"25780172368020": "Etapas_de_Coleta",
			"27112103294868": "Avaliacao_no_RA",
			"27112199178132": "Nota_da_Avaliacao",
			"25820195084948": "Demanda",
			"26256620215444": "Plano_de_Acao_Insatisfacao_Resultado_de_OS",
			"25966692319380": "Numero_da_OS",
			"27265194513556": "Cliente_Reincidente",
			"25427606175380": "Numero_da_NFD",
			"22333255":       "Atribuido_Para",
		},
		Key:      []string{"id", "created_at"},
		Tiebreak: "id",
	}
}
